package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/utils"
)

const (
	CatboxEndpoint = "https://catbox.moe/user/api.php"
	CatboxLimit    = 200 * 1024 * 1024
)

type Catbox struct {
	Endpoint string
	UserHash string
	client   utils.HTTPDoer
}

// NewCatbox uses a default client with a long timeout when client is nil.
func NewCatbox(userHash string, client utils.HTTPDoer) *Catbox {
	if client == nil {
		client = utils.NewClipHTTPClient(utils.HTTPClientConfig{Timeout: 30 * time.Minute})
	}
	return &Catbox{Endpoint: CatboxEndpoint, UserHash: userHash, client: client}
}

func (c *Catbox) Target() string { return TargetCatbox }

func (c *Catbox) Upload(ctx context.Context, path string) (Result, error) {
	const op = "upload/catbox"
	size, err := stat(op, path, CatboxLimit)
	if err != nil {
		return Result{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Result{}, errs.E(errs.InvalidInput, op, err)
	}
	defer file.Close()

	// stream the multipart body instead of buffering up to 200 MB
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, c.UserHash, filepath.Base(path), file))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, pr)
	if err != nil {
		pr.Close()
		return Result{}, errs.E(errs.UnexpectedFailure, op, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	log.Debug().Str("op", op).Msgf("uploading %s (%s)", path, utils.FormatMB(size))
	resp, err := c.client.Do(req)
	if err != nil {
		pr.Close()
		return Result{}, errs.E(errs.TransientToolFailure, op, fmt.Errorf("error uploading %s: %w", path, err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Result{}, errs.E(errs.TransientToolFailure, op, fmt.Errorf("error reading response: %w", err))
	}
	text := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK {
		kind := errs.UnexpectedFailure
		if resp.StatusCode >= 500 {
			kind = errs.TransientToolFailure
		}
		return Result{}, errs.Errorf(kind, op, "catbox returned %s: %s", resp.Status, text)
	}
	if !strings.HasPrefix(text, "https://") {
		return Result{}, errs.Errorf(errs.UnexpectedFailure, op, "unexpected catbox response %q", text)
	}
	return newResult(path, text, TargetCatbox, size), nil
}

func writeForm(form *multipart.Writer, userHash, name string, content io.Reader) error {
	if err := form.WriteField("reqtype", "fileupload"); err != nil {
		return err
	}
	if userHash != "" {
		if err := form.WriteField("userhash", userHash); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("fileToUpload", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return form.Close()
}
