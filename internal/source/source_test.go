package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examtrainer/internal/model"
)

func newTestSource(t *testing.T) *Client {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/subjects", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["Computer Networks","Advanced Data Structures"]`))
	})
	r.Get("/questions/{subject}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "subject") {
		case "Computer Networks":
			_, _ = w.Write([]byte(`[{"id":1,"title":"OSI","body":"Describe the OSI model","checkpoints":["layers","encapsulation"],"module":"m1"},{"id":"q-2","title":"TCP","body":"Explain TCP","checkpoints":["handshake"]}]`))
		case "Broken":
			_, _ = w.Write([]byte(`{"questions":"soon"}`))
		default:
			_, _ = w.Write([]byte(`{"error":"Subject not found"}`))
		}
	})
	r.Get("/exam/{subject}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "subject") {
		case "Computer Networks":
			_, _ = w.Write([]byte(`{"A":[{"id":1,"title":"a","body":"b","checkpoints":["x"]}],"B":[{"id":2,"title":"a","body":"b","checkpoints":["y"]}],"C":[{"id":3,"title":"a","body":"b","checkpoints":["z"]}]}`))
		case "Gone":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Subject not found"}`))
		case "Down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"error":"Not enough questions for block A"}`))
		}
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second)
}

func TestSubjects(t *testing.T) {
	c := newTestSource(t)
	subjects, err := c.Subjects(context.Background())
	if err != nil {
		t.Fatalf("Subjects: %v", err)
	}
	if len(subjects) != 2 || subjects[0] != "Computer Networks" {
		t.Errorf("Subjects() = %v", subjects)
	}
}

func TestQuestions(t *testing.T) {
	c := newTestSource(t)

	qs, err := c.Questions(context.Background(), "Computer Networks")
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
	if qs[0].ID != "1" || qs[1].ID != "q-2" {
		t.Errorf("ids = %q, %q; want numeric and string ids decoded", qs[0].ID, qs[1].ID)
	}
	if qs[0].Module != "m1" || len(qs[0].Checkpoints) != 2 {
		t.Errorf("first question = %+v", qs[0])
	}

	_, err = c.Questions(context.Background(), "Philosophy")
	var ise *model.InvalidSubjectError
	if !errors.As(err, &ise) || ise.Message != "Subject not found" {
		t.Errorf("unknown subject error = %v, want InvalidSubject", err)
	}

	if _, err := c.Questions(context.Background(), "Broken"); !errors.Is(err, model.ErrMalformedResponse) {
		t.Errorf("broken payload error = %v, want ErrMalformedResponse", err)
	}
}

func TestExam(t *testing.T) {
	c := newTestSource(t)

	paper, err := c.Exam(context.Background(), "Computer Networks")
	if err != nil {
		t.Fatalf("Exam: %v", err)
	}
	if paper.Len() != 3 || paper.Error != "" {
		t.Errorf("paper = %+v", paper)
	}

	paper, err = c.Exam(context.Background(), "Tiny Subject")
	if err != nil {
		t.Fatalf("Exam(error payload): %v", err)
	}
	if paper.Error != "Not enough questions for block A" {
		t.Errorf("paper.Error = %q", paper.Error)
	}

	if _, err := c.Exam(context.Background(), "Gone"); !errors.Is(err, model.ErrInvalidSubject) {
		t.Errorf("404 with error payload = %v, want ErrInvalidSubject", err)
	}
	if _, err := c.Exam(context.Background(), "Down"); !errors.Is(err, model.ErrNetworkFailure) {
		t.Errorf("502 = %v, want ErrNetworkFailure", err)
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := New(url, time.Second).Subjects(context.Background()); !errors.Is(err, model.ErrNetworkFailure) {
		t.Errorf("error = %v, want ErrNetworkFailure", err)
	}
}
