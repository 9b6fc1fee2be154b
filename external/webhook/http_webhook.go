package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/foxseedlab/callinsight/internal/webhook"
)

const webhookTimeout = 15 * time.Second

type HTTPSender struct {
	webhookURL string
	client     *http.Client
}

func NewHTTPSender(webhookURL string) webhook.Sender {
	return &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: webhookTimeout},
	}
}

// SendBatchSummary posts a multipart form with the JSON payload in the
// "payload" part and, when given, the attachment in the "file" part.
func (s *HTTPSender) SendBatchSummary(ctx context.Context, payload webhook.BatchWebhookPayload, attachment *webhook.Attachment) error {
	if s.webhookURL == "" {
		return nil
	}

	body, contentType, err := buildMultipartBody(payload, attachment)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func buildMultipartBody(payload webhook.BatchWebhookPayload, attachment *webhook.Attachment) (*bytes.Buffer, string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="payload"`)
	header.Set("Content-Type", "application/json")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(b); err != nil {
		return nil, "", err
	}

	if attachment != nil {
		fw, err := w.CreateFormFile("file", attachment.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(attachment.Body); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
