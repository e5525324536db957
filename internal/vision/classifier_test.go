package vision

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClassifierDetect(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"faces":[{"confidence":0.93,"sunglasses":0.1}],
			"objects":[{"label":"cell phone","confidence":0.88}]
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, 5*time.Second)
	det, err := c.Detect(context.Background(), []byte("raw-image"))
	if err != nil {
		t.Fatal(err)
	}

	if string(gotBody) != "raw-image" {
		t.Errorf("service received %q, want raw image bytes", gotBody)
	}
	if len(det.Faces) != 1 || det.Faces[0].Confidence != 0.93 {
		t.Errorf("faces = %+v", det.Faces)
	}
	if len(det.Objects) != 1 || det.Objects[0].Label != "cell phone" {
		t.Errorf("objects = %+v", det.Objects)
	}
}

func TestHTTPClassifierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, 5*time.Second)
	_, err := c.Detect(context.Background(), []byte("img"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestHTTPClassifierMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, 5*time.Second)
	_, err := c.Detect(context.Background(), []byte("img"))
	if !errors.Is(err, ErrBadResponse) {
		t.Errorf("err = %v, want ErrBadResponse", err)
	}
}

func TestHTTPClassifierUnreachable(t *testing.T) {
	c := NewHTTPClassifier("http://127.0.0.1:1/detect", time.Second)
	_, err := c.Detect(context.Background(), []byte("img"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestHTTPClassifierNotConfigured(t *testing.T) {
	c := NewHTTPClassifier("", time.Second)
	_, err := c.Detect(context.Background(), []byte("img"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
