package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/utils"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCatboxUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("User-Agent") != utils.ToolUserAgent {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("reqtype"); got != "fileupload" {
			t.Errorf("reqtype = %q", got)
		}
		if got := r.FormValue("userhash"); got != "hash123" {
			t.Errorf("userhash = %q", got)
		}
		file, header, err := r.FormFile("fileToUpload")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		if header.Filename != "clip.mp4" || string(body) != "video bytes" {
			t.Errorf("got file %q with %q", header.Filename, body)
		}
		io.WriteString(w, "https://files.catbox.moe/abc123.mp4\n")
	}))
	defer server.Close()

	path := writeFile(t, "clip.mp4", "video bytes")
	c := NewCatbox("hash123", utils.NewClipHTTPClient(utils.HTTPClientConfig{}))
	c.Endpoint = server.URL
	res, err := c.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if res.URL != "https://files.catbox.moe/abc123.mp4" {
		t.Errorf("URL = %q", res.URL)
	}
	if res.Target != TargetCatbox || res.Size != 11 || res.ID == "" || res.File != path {
		t.Errorf("result = %+v", res)
	}
}

func TestCatboxErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   errs.Kind
	}{
		{"server error is transient", http.StatusBadGateway, "bad gateway", errs.TransientToolFailure},
		{"client error", http.StatusPreconditionFailed, "No files given", errs.UnexpectedFailure},
		{"non-url body", http.StatusOK, "Something went wrong", errs.UnexpectedFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()
			c := NewCatbox("", nil)
			c.Endpoint = server.URL
			_, err := c.Upload(context.Background(), writeFile(t, "a.mp4", "x"))
			if !errs.Is(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestCatboxRejectsMissingFile(t *testing.T) {
	c := NewCatbox("", nil)
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errs.Is(err, errs.InvalidInput) {
		t.Errorf("expected InvalidInput, got %v", err)
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutter) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	b, _ := io.ReadAll(input.Body)
	f.body = string(b)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Location: "https://bucket.s3.amazonaws.com/" + aws.ToString(input.Key)}, nil
}

func TestS3Upload(t *testing.T) {
	putter := &fakePutter{}
	u := NewS3WithUploader("bucket", "/clips/", putter)
	path := writeFile(t, "song.m4a", "audio")
	res, err := u.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if aws.ToString(putter.input.Bucket) != "bucket" || aws.ToString(putter.input.Key) != "clips/song.m4a" {
		t.Errorf("put %s/%s", aws.ToString(putter.input.Bucket), aws.ToString(putter.input.Key))
	}
	if putter.body != "audio" {
		t.Errorf("body = %q", putter.body)
	}
	if res.URL != "https://bucket.s3.amazonaws.com/clips/song.m4a" || res.Target != TargetS3 || res.Size != 5 {
		t.Errorf("result = %+v", res)
	}

	putter.err = errors.New("throttled")
	if _, err := u.Upload(context.Background(), path); !errs.Is(err, errs.TransientToolFailure) {
		t.Errorf("expected TransientToolFailure, got %v", err)
	}
}

func TestNewUnknownTarget(t *testing.T) {
	if _, err := New(context.Background(), Settings{Target: "ftp"}); !errs.Is(err, errs.InvalidInput) {
		t.Errorf("expected InvalidInput, got %v", err)
	}
	u, err := New(context.Background(), Settings{})
	if err != nil || u.Target() != TargetCatbox {
		t.Errorf("default uploader = %v, %v", u, err)
	}
}
