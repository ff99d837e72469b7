// Package hrapi talks to the HR/attendance backend: the active-employee
// directory, the chat-account mapping and the daily scan summary.
package hrapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"attendance-bridge/internal/attendance/domain"

	"github.com/sethvargo/go-retry"
)

const (
	employeeActivePath = "/api/LineNotify/EmployeeActive"
	lineUsersPath      = "/api/LineUsers"
	scanSummaryPath    = "/api/LineNotify/ScanSummary"

	defaultMaxRetries = 3
	defaultRetryBase  = 500 * time.Millisecond
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	loc        *time.Location
	maxRetries uint64
	retryBase  time.Duration
}

type Option func(*Client)

// WithRetry overrides the transport retry policy (exponential from base).
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBase = base
	}
}

// NewClient creates an HR API client. Scan times are interpreted in loc.
func NewClient(baseURL string, timeout time.Duration, loc *time.Location, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		loc:        loc,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// flexString accepts both JSON strings and numbers; the backend is not
// consistent about ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type activeEmployee struct {
	WorkdayID flexString `json:"workdayId"`
	EmpCode   flexString `json:"empCode"`
	EmpName   string     `json:"empName"`
	DeptCode  flexString `json:"deptCode"`
	DeptName  string     `json:"deptName"`
}

type lineUser struct {
	EmployeeCode flexString `json:"employeeCode"`
	WeComID      string     `json:"weComId"`
}

type scanSummary struct {
	WorkdayID flexString `json:"workdayId"`
	DateWork  string     `json:"dateWork"`
	ScanIn    *string    `json:"scanIn"`
	ScanOut   *string    `json:"scanOut"`
}

// Employees returns the active employees that have a chat account, joined
// on employee code.
func (c *Client) Employees(ctx context.Context) ([]domain.Employee, error) {
	var active []activeEmployee
	if err := c.getJSON(ctx, "employees", employeeActivePath, nil, &active); err != nil {
		return nil, err
	}
	var users []lineUser
	if err := c.getJSON(ctx, "line users", lineUsersPath, nil, &users); err != nil {
		return nil, err
	}

	recipients := make(map[string]string, len(users))
	for _, u := range users {
		id := strings.TrimSpace(u.WeComID)
		if u.EmployeeCode != "" && id != "" {
			recipients[string(u.EmployeeCode)] = id
		}
	}

	out := make([]domain.Employee, 0, len(recipients))
	for _, e := range active {
		if e.WorkdayID == "" || e.EmpCode == "" {
			continue
		}
		rid, ok := recipients[string(e.EmpCode)]
		if !ok {
			continue
		}
		out = append(out, domain.Employee{
			SubjectID:    string(e.WorkdayID),
			EmployeeCode: string(e.EmpCode),
			FullName:     e.EmpName,
			DeptCode:     string(e.DeptCode),
			DeptName:     e.DeptName,
			RecipientID:  rid,
		})
	}
	return out, nil
}

// Fetch returns the current full scan state for subjectIDs on date. Rows for
// other dates and rows without any scan are dropped.
func (c *Client) Fetch(ctx context.Context, date time.Time, subjectIDs []string) ([]domain.ScanRecord, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	date = date.In(c.loc)
	day := date.Format(domain.DateLayout)

	q := url.Values{}
	q.Set("year", strconv.Itoa(date.Year()))
	q.Set("month", strconv.Itoa(int(date.Month())))
	for _, id := range subjectIDs {
		q.Add("workdayIds", id)
	}

	var rows []scanSummary
	if err := c.getJSON(ctx, "scan summary", scanSummaryPath, q, &rows); err != nil {
		return nil, err
	}

	out := make([]domain.ScanRecord, 0, len(rows))
	for _, row := range rows {
		if row.WorkdayID == "" || row.DateWork == "" {
			continue
		}
		workDate, err := time.ParseInLocation(domain.DateLayout, row.DateWork, c.loc)
		if err != nil || row.DateWork != day {
			continue
		}
		rec := domain.ScanRecord{
			SubjectID:     string(row.WorkdayID),
			WorkDate:      day,
			FirstScanTime: c.parseScanTime(workDate, row.ScanIn),
			LastScanTime:  c.parseScanTime(workDate, row.ScanOut),
		}
		if rec.FirstScanTime == nil && rec.LastScanTime == nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseScanTime accepts "15:04:05" or RFC 3339; an RFC 3339 value on another
// day keeps only its time of day.
func (c *Client) parseScanTime(workDate time.Time, raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	s := strings.TrimSpace(*raw)
	y, m, d := workDate.Date()

	if t, err := time.ParseInLocation(time.TimeOnly, s, c.loc); err == nil {
		v := time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, c.loc)
		return &v
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		t, err := time.ParseInLocation(layout, s, c.loc)
		if err != nil {
			continue
		}
		t = t.In(c.loc)
		if t.Format(domain.DateLayout) != workDate.Format(domain.DateLayout) {
			t = time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
		}
		return &t
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return &domain.FetchError{Op: op, Err: err}
	}
	return nil
}
