package hrapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"attendance-bridge/internal/attendance/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bangkok = time.FixedZone("ICT", 7*60*60)

func newServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestEmployees_JoinsDirectoryWithChatAccounts(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		employeeActivePath: writeJSON(`[
			{"workdayId": 1001, "empCode": "E01", "empName": "Somchai", "deptCode": "D1", "deptName": "Assembly"},
			{"workdayId": "1002", "empCode": "E02", "empName": "Malee"},
			{"workdayId": "1003", "empCode": "E03", "empName": "No Chat"},
			{"workdayId": null, "empCode": "E04", "empName": "No Workday"}
		]`),
		lineUsersPath: writeJSON(`[
			{"employeeCode": "E01", "weComId": "somchai"},
			{"employeeCode": "E02", "weComId": " malee "},
			{"employeeCode": "E03", "weComId": "  "},
			{"employeeCode": "E04", "weComId": "ghost"}
		]`),
	})

	c := NewClient(srv.URL, time.Second, bangkok)
	got, err := c.Employees(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Employee{
		{SubjectID: "1001", EmployeeCode: "E01", FullName: "Somchai", DeptCode: "D1", DeptName: "Assembly", RecipientID: "somchai"},
		{SubjectID: "1002", EmployeeCode: "E02", FullName: "Malee", RecipientID: "malee"},
	}, got)
}

func TestFetch_ParsesAndFiltersRecords(t *testing.T) {
	var query atomic.Value
	srv := newServer(t, map[string]http.HandlerFunc{
		scanSummaryPath: func(w http.ResponseWriter, r *http.Request) {
			query.Store(r.URL.Query())
			writeJSON(`[
				{"workdayId": "1001", "dateWork": "2026-10-19", "scanIn": "08:55:00", "scanOut": null},
				{"workdayId": "1002", "dateWork": "2026-10-19", "scanIn": "2026-10-19T09:01:02+07:00", "scanOut": "2026-10-18T17:30:00+07:00"},
				{"workdayId": "1003", "dateWork": "2026-10-19", "scanIn": null, "scanOut": null},
				{"workdayId": "1001", "dateWork": "2026-10-18", "scanIn": "08:00:00", "scanOut": "17:00:00"},
				{"workdayId": "1004", "dateWork": "2026-10-19", "scanIn": "garbage", "scanOut": "18:00:00"}
			]`)(w, r)
		},
	})

	c := NewClient(srv.URL, time.Second, bangkok)
	day := time.Date(2026, 10, 19, 12, 0, 0, 0, bangkok)
	got, err := c.Fetch(context.Background(), day, []string{"1001", "1002", "1003", "1004"})
	require.NoError(t, err)

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"2026"}, q["year"])
	assert.Equal(t, []string{"10"}, q["month"])
	assert.Equal(t, []string{"1001", "1002", "1003", "1004"}, q["workdayIds"])

	require.Len(t, got, 3)

	assert.Equal(t, "1001", got[0].SubjectID)
	assert.Equal(t, "2026-10-19", got[0].WorkDate)
	require.NotNil(t, got[0].FirstScanTime)
	assert.True(t, got[0].FirstScanTime.Equal(time.Date(2026, 10, 19, 8, 55, 0, 0, bangkok)))
	assert.Nil(t, got[0].LastScanTime)

	require.NotNil(t, got[1].LastScanTime)
	assert.True(t, got[1].FirstScanTime.Equal(time.Date(2026, 10, 19, 9, 1, 2, 0, bangkok)))
	assert.True(t, got[1].LastScanTime.Equal(time.Date(2026, 10, 19, 17, 30, 0, 0, bangkok)), "other-day timestamps keep only the time of day")

	assert.Equal(t, "1004", got[2].SubjectID)
	assert.Nil(t, got[2].FirstScanTime)
	require.NotNil(t, got[2].LastScanTime)
}

func TestFetch_NoSubjectsSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, map[string]http.HandlerFunc{
		scanSummaryPath: func(w http.ResponseWriter, r *http.Request) { calls.Add(1) },
	})

	got, err := NewClient(srv.URL, time.Second, bangkok).Fetch(context.Background(), time.Now(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, calls.Load())
}

func TestFetch_RetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, map[string]http.HandlerFunc{
		scanSummaryPath: func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeJSON(`[]`)(w, r)
		},
	})

	c := NewClient(srv.URL, time.Second, bangkok, WithRetry(3, time.Millisecond))
	_, err := c.Fetch(context.Background(), time.Now(), []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_FailuresAreFetchErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		"client error": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
		"bad json":     writeJSON(`{"not": "a list"`),
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, map[string]http.HandlerFunc{scanSummaryPath: h})
			c := NewClient(srv.URL, time.Second, bangkok, WithRetry(1, time.Millisecond))

			_, err := c.Fetch(context.Background(), time.Now(), []string{"1"})
			var fe *domain.FetchError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, "scan summary", fe.Op)
		})
	}
}

func TestFetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(addr, 200*time.Millisecond, bangkok, WithRetry(1, time.Millisecond))
	_, err := c.Fetch(context.Background(), time.Now(), []string{"1"})
	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
}
