package faceapi

import (
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

func TestClient_Load(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "Success", status: http.StatusOK, body: `{}`},
		{name: "Missing bundle", status: http.StatusNotFound, body: `{"error":"manifest not found"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got loadRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/models/load" || r.Method != http.MethodPost {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			models := []string{"/models/a.json", "/models/b.json"}
			err := NewClient(srv.URL).Load(context.Background(), models)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected err=%v, got %v", tt.wantErr, err)
			}
			if len(got.Models) != 2 || got.Models[1] != "/models/b.json" {
				t.Errorf("request models = %v", got.Models)
			}
		})
	}
}

func TestClient_Detect(t *testing.T) {
	var gotSize image.Rectangle
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "image/jpeg" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		img, err := jpeg.Decode(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotSize = img.Bounds()
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"detections":[
			{"score":0.97,"expressions":{"sad":0.4,"happy":0.4,"neutral":0.2}},
			{"score":0.81,"expressions":{"angry":1}}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithInputSize(320), WithScoreThreshold(0.6))
	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	dets, err := client.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if gotSize.Dx() != 320 || gotSize.Dy() != 240 {
		t.Errorf("uploaded frame = %v, want 320x240", gotSize)
	}
	if gotQuery != "input_size=320&score_threshold=0.6" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}

	wantOrder := []domain.Mood{domain.MoodSad, domain.MoodHappy, domain.MoodNeutral}
	for i, e := range dets[0].Expressions {
		if e.Label != wantOrder[i] {
			t.Errorf("expression %d = %s, want %s", i, e.Label, wantOrder[i])
		}
	}
	res, ok := dets[0].Expressions.Dominant()
	if !ok || res.Mood != domain.MoodSad {
		t.Errorf("Dominant() = %+v, %v, want sad (first of tie)", res, ok)
	}
}

func TestClient_DetectErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "Server error", status: http.StatusInternalServerError, body: `{"error":"models not loaded"}`},
		{name: "Error field", status: http.StatusOK, body: `{"error":"gpu lost"}`},
		{name: "Malformed", status: http.StatusOK, body: `{"detections":[{"expressions":[1,2]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
			if err == nil {
				t.Fatal("Detect() error = nil")
			}
		})
	}
}

func TestExpressions_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "Ordered", input: `{"Neutral":0.1,"happy":0.7,"fearful":0.2}`, want: []string{"neutral", "happy", "fearful"}},
		{name: "Empty", input: `{}`, want: []string{}},
		{name: "Null", input: `null`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e expressions
			if err := json.Unmarshal([]byte(tt.input), &e); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			got := e.Sample()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d labels, want %d", len(got), len(tt.want))
			}
			for i, label := range tt.want {
				if string(got[i].Label) != label {
					t.Errorf("label %d = %s, want %s", i, got[i].Label, label)
				}
			}
		})
	}
}

func TestTargetDimensions(t *testing.T) {
	tests := []struct {
		w, h, maxSide int
		wantW, wantH  int
	}{
		{w: 640, h: 480, maxSide: 416, wantW: 416, wantH: 312},
		{w: 480, h: 640, maxSide: 416, wantW: 312, wantH: 416},
		{w: 200, h: 100, maxSide: 416, wantW: 200, wantH: 100},
		{w: 4000, h: 1, maxSide: 100, wantW: 100, wantH: 1},
		{w: 640, h: 480, maxSide: 0, wantW: 640, wantH: 480},
	}
	for _, tt := range tests {
		w, h := targetDimensions(tt.w, tt.h, tt.maxSide)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("targetDimensions(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.maxSide, w, h, tt.wantW, tt.wantH)
		}
	}
}
