// Package zenodo talks to the Zenodo deposition REST API: create a
// deposition, upload files into it, set its metadata and publish it.
// The session-level orchestration on top lives in depositor.go.
package zenodo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
	"github.com/mousetube/mousetube-go/internal/observability/metrics"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("zenodo")
	if logger == nil {
		logger = slog.Default().With("service", "zenodo")
	}
}

const (
	// requestTimeout bounds metadata and state requests. Uploads get their
	// own much larger budget, ultrasonic recordings run to gigabytes.
	requestTimeout = 30 * time.Second
	uploadTimeout  = 30 * time.Minute

	// uploadTypeDataset is the only upload type the catalog deposits.
	uploadTypeDataset = "dataset"
)

// Client is a deposition API client. Safe for concurrent use.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	debug      bool
	metrics    *metrics.ZenodoMetrics
}

// NewClient builds a client from the catalog settings.
func NewClient(settings *conf.ZenodoSettings) (*Client, error) {
	if settings.AccessToken == "" {
		return nil, errors.Newf("zenodo access token is required").
			Category(errors.CategoryConfiguration).
			Component("zenodo").
			Build()
	}

	apiURL := strings.TrimSuffix(settings.APIURL, "/")
	if apiURL == "" {
		apiURL = conf.DefaultZenodoAPIURL
	}

	client := &Client{
		apiURL: apiURL,
		token:  settings.AccessToken,
		httpClient: &http.Client{
			Timeout: uploadTimeout,
		},
		debug: settings.Debug,
	}

	logger.Info("zenodo client initialized",
		"api_url", apiURL,
		"token_configured", settings.AccessToken != "")

	return client, nil
}

// SetMetrics attaches Prometheus metrics to the client.
func (c *Client) SetMetrics(m *metrics.ZenodoMetrics) {
	c.metrics = m
}

// HTTPClient exposes the underlying client for transport injection in tests.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// RecordsBaseURL returns the public site root derived from the API URL,
// e.g. https://sandbox.zenodo.org for https://sandbox.zenodo.org/api.
func (c *Client) RecordsBaseURL() string {
	return strings.TrimSuffix(c.apiURL, "/api")
}

// RecordURL returns the public landing page of a published record.
func (c *Client) RecordURL(depositionID string) string {
	return fmt.Sprintf("%s/records/%s", c.RecordsBaseURL(), depositionID)
}

// FileDownloadURL returns the public direct download link of a file in a
// published record.
func (c *Client) FileDownloadURL(depositionID, filename string) string {
	return fmt.Sprintf("%s/records/%s/files/%s?download=1", c.RecordsBaseURL(), depositionID, url.PathEscape(filename))
}

func (c *Client) depositionsURL() string {
	return c.apiURL + "/deposit/depositions"
}

// CreateDeposition creates a new empty deposition.
func (c *Client) CreateDeposition(ctx context.Context) (*Deposition, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var dep Deposition
	err := c.doJSON(ctx, http.MethodPost, c.depositionsURL(), strings.NewReader("{}"), &dep, "create_deposition")
	if err != nil {
		return nil, err
	}

	logger.Info("deposition created", "deposition_id", dep.ID)
	return &dep, nil
}

// UploadFile streams a file into the deposition under the given name.
// The caller is responsible for sanitizing the filename.
func (c *Client) UploadFile(ctx context.Context, depositionID, filename string, src io.Reader) (*DepositionFile, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	// The multipart body is produced through a pipe so multi-gigabyte
	// recordings never sit in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	uploadURL := fmt.Sprintf("%s/%s/files", c.depositionsURL(), depositionID)
	req, err := c.newRequest(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	var file DepositionFile
	if err := c.do(req, &file, "upload_file"); err != nil {
		if c.metrics != nil {
			c.metrics.RecordUpload("error")
		}
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordUpload("success")
		c.metrics.AddUploadBytes(file.Filesize)
		c.metrics.RecordUploadDuration(time.Since(start).Seconds())
	}
	logger.Info("file uploaded to deposition",
		"deposition_id", depositionID,
		"filename", filename,
		"size_bytes", file.Filesize,
		"duration_ms", time.Since(start).Milliseconds())
	return &file, nil
}

// SetMetadata replaces the deposition metadata.
func (c *Client) SetMetadata(ctx context.Context, depositionID string, meta Metadata) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if meta.UploadType == "" {
		meta.UploadType = uploadTypeDataset
	}

	payload, err := json.Marshal(struct {
		Metadata Metadata `json:"metadata"`
	}{Metadata: meta})
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDeposition).
			Component("zenodo").
			Context("operation", "set_metadata").
			Build()
	}

	depURL := fmt.Sprintf("%s/%s", c.depositionsURL(), depositionID)
	return c.doJSON(ctx, http.MethodPut, depURL, strings.NewReader(string(payload)), nil, "set_metadata")
}

// Publish makes the deposition public and returns its state including the
// minted DOI.
func (c *Client) Publish(ctx context.Context, depositionID string) (*Deposition, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	publishURL := fmt.Sprintf("%s/%s/actions/publish", c.depositionsURL(), depositionID)

	var dep Deposition
	if err := c.doJSON(ctx, http.MethodPost, publishURL, nil, &dep, "publish"); err != nil {
		return nil, err
	}

	if dep.DOI == "" {
		return nil, errors.Newf("archive did not return a DOI after publishing").
			Category(errors.CategoryDeposition).
			Component("zenodo").
			Context("deposition_id", depositionID).
			Build()
	}

	if c.metrics != nil {
		c.metrics.RecordPublishDuration(time.Since(start).Seconds())
	}
	logger.Info("deposition published",
		"deposition_id", depositionID,
		"doi", dep.DOI)
	return &dep, nil
}

// newRequest builds a request with the access token attached as a query
// parameter, the form the deposition API documents.
func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryNetwork).
			Component("zenodo").
			Context("method", method).
			Context("url", rawURL).
			Build()
	}

	q := req.URL.Query()
	q.Set("access_token", c.token)
	req.URL.RawQuery = q.Encode()
	return req, nil
}

// doJSON performs a JSON request and decodes the response into result.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body io.Reader, result any, operation string) error {
	req, err := c.newRequest(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, result, operation)
}

// do executes the request, maps error responses to categorized errors and
// decodes a successful body into result. URLs are logged without the query
// string so the access token never reaches the logs.
func (c *Client) do(req *http.Request, result any, operation string) error {
	logURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	start := time.Now()

	if c.debug {
		logger.Debug("zenodo API request", "method", req.Method, "url", logURL, "operation", operation)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordAPIRequest(operation, 0, time.Since(start).Seconds())
		}
		logger.Error("zenodo API request failed",
			"method", req.Method, "url", logURL, "operation", operation, "error", err)
		return errors.New(err).
			Category(errors.CategoryNetwork).
			Component("zenodo").
			Context("operation", operation).
			Context("url", logURL).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if c.metrics != nil {
		c.metrics.RecordAPIRequest(operation, resp.StatusCode, time.Since(start).Seconds())
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryNetwork).
			Component("zenodo").
			Context("operation", operation).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if resp.StatusCode >= 400 {
		detail := strings.TrimSpace(string(bodyBytes))
		var apiErr apiError
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Message != "" {
			detail = apiErr.Message
			for _, fieldErr := range apiErr.Errors {
				detail += fmt.Sprintf("; %s: %s", fieldErr.Field, fieldErr.Message)
			}
		}
		if len(detail) > 500 {
			detail = detail[:500]
		}

		logger.Warn("zenodo API error response",
			"operation", operation,
			"status_code", resp.StatusCode,
			"detail", detail,
			"url", logURL)
		return errors.Newf("zenodo API error (status %d): %s", resp.StatusCode, detail).
			Category(categoryForStatus(resp.StatusCode)).
			Component("zenodo").
			Context("operation", operation).
			Context("status_code", resp.StatusCode).
			Context("url", logURL).
			Build()
	}

	if result != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return errors.Newf("failed to parse zenodo response: %w", err).
				Category(errors.CategoryDeposition).
				Component("zenodo").
				Context("operation", operation).
				Context("response_size", len(bodyBytes)).
				Build()
		}
	}

	if c.debug {
		logger.Debug("zenodo API response",
			"operation", operation,
			"status_code", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return nil
}

// categoryForStatus maps an HTTP status to the error category that drives
// retry and notification decisions.
func categoryForStatus(statusCode int) errors.ErrorCategory {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.CategoryConfiguration
	case http.StatusTooManyRequests:
		return errors.CategoryLimit
	case http.StatusNotFound:
		return errors.CategoryNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errors.CategoryDeposition
	default:
		return errors.CategoryNetwork
	}
}
