package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "Exam Trainer" {
		t.Errorf("T(AppTitle) = %q, want 'Exam Trainer'", got)
	}
	if got := T(ctx, "EmptyAnswer"); got != "Write an answer before checking it." {
		t.Errorf("T(EmptyAnswer) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "AppTitle"); got != "Тренажёр экзамена" {
		t.Errorf("T(AppTitle) = %q, want 'Тренажёр экзамена'", got)
	}
	if got := T(ctx, "TimeUp"); got != "Время вышло." {
		t.Errorf("T(TimeUp) = %q, want 'Время вышло.'", got)
	}
}

func TestQuotaMessageNamesBlock(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuotaExceeded", map[string]any{"Block": "B", "Quota": 2})
	want := "Block B is full: only 2 answers are allowed in this block."
	if got != want {
		t.Errorf("Td(QuotaExceeded) = %q, want %q", got, want)
	}
}

func TestErrorMessagesDistinct(t *testing.T) {
	for _, lang := range []string{"en", "ru"} {
		ctx := initLang(t, lang)
		seen := map[string]string{}
		for _, id := range []string{
			"EmptyAnswer", "QuotaExceeded", "NotRunning", "AlreadyRunning", "UnknownQuestion",
			"InvalidSubject", "MalformedResponse", "NetworkFailure", "BadRequest", "InternalError",
		} {
			msg := Td(ctx, id, map[string]any{"Block": "A", "Quota": 3, "Reason": "x"})
			if msg == id {
				t.Errorf("%s: missing translation for %s", lang, id)
			}
			if prev, dup := seen[msg]; dup {
				t.Errorf("%s: %s and %s share message %q", lang, prev, id, msg)
			}
			seen[msg] = id
		}
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	if got := Tp(ctx, "AnswersRecorded", 1); got != "1 answer recorded." {
		t.Errorf("Tp(AnswersRecorded, 1) = %q", got)
	}
	if got := Tp(ctx, "AnswersRecorded", 5); got != "5 answers recorded." {
		t.Errorf("Tp(AnswersRecorded, 5) = %q", got)
	}

	ru := initLang(t, "ru")
	if got := Tp(ru, "AnswersRecorded", 3); got != "Записано 3 ответа." {
		t.Errorf("Tp(ru, 3) = %q", got)
	}
	if got := Tp(ru, "AnswersRecorded", 5); got != "Записано 5 ответов." {
		t.Errorf("Tp(ru, 5) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewareNegotiation(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "TimeUp")
	}))

	tests := []struct {
		name   string
		target string
		accept string
		want   string
	}{
		{"default", "/", "", "Time is up."},
		{"accept-language", "/", "ru-RU,ru;q=0.9,en;q=0.5", "Время вышло."},
		{"query wins", "/?lang=en", "ru", "Time is up."},
		{"unsupported falls back", "/", "de-DE", "Time is up."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
