package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plansheet/internal/model"
)

const planJSON = `{"data":{
  "id": 55,
  "title": "Sunday AM",
  "event_title": "Sunday Gathering",
  "start": "2025-03-09T15:00:00Z",
  "updated_at": "2025-03-07T20:05:00Z",
  "updated_by": "Dana",
  "teams": ["Band", "Audio", "Band"],
  "rows": [
    {"type": "start", "duration": 0, "title": "Doors"},
    {"type": "song", "duration": 300, "title": "Opening", "notes": {"Band": "Full band", "Audio": null}},
    {"duration": 600.4, "detail": "<b>Welcome</b>"}
  ]
}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/v2", srv.Client(), "plansheet/test")
	require.NoError(t, err)
	return c
}

func TestSearchServices(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"2","title":"Late","start":"2025-03-09T17:00:00Z","end":"2025-03-09T18:00:00Z"},
			{"id":1,"title":"Early","start":"2025-03-09T14:00:00Z"}
		]}`))
	})

	start := time.Date(2025, 3, 9, 5, 0, 0, 0, time.UTC)
	res, err := c.SearchServices(context.Background(), SearchQuery{
		Start:    start,
		End:      start.Add(24*time.Hour - time.Nanosecond),
		Statuses: []string{"published", "draft"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v2/services", got.URL.Path)
	assert.Equal(t, "2025-03-09T05:00:00Z", got.URL.Query().Get("start"))
	assert.Equal(t, "2025-03-10T04:59:59Z", got.URL.Query().Get("end"))
	assert.Equal(t, "published,draft", got.URL.Query().Get("status"))
	assert.Equal(t, "start", got.URL.Query().Get("sort"))
	assert.Equal(t, "plansheet/test", got.Header.Get("User-Agent"))

	require.Len(t, res, 2)
	assert.Equal(t, "1", res[0].ID, "results sorted by start")
	assert.Equal(t, "Late", res[1].Title)
	assert.False(t, res[1].End.IsZero())
}

func TestSearchServicesMissingStart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"1","title":"Broken"}]}`))
	})

	_, err := c.SearchServices(context.Background(), SearchQuery{})
	assert.ErrorIs(t, err, model.ErrMalformedPlanData)
}

func TestServiceDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/services/9", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":"9","title":"Sunday","start":"2025-03-09T14:00:00Z",
			"plans":[{"id":"p1","title":"AM","start":"2025-03-09T14:00:00Z"},{"id":"p2","title":"PM"}]}}`))
	})

	d, err := c.ServiceDetail(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, "Sunday", d.Title)
	require.Len(t, d.Plans, 2)
	assert.Equal(t, "p2", d.Plans[1].ID)
	assert.True(t, d.Plans[1].Start.IsZero())
}

func TestPlanDecode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/plans/55", r.URL.Path)
		_, _ = w.Write([]byte(planJSON))
	})

	p, err := c.Plan(context.Background(), "55")
	require.NoError(t, err)

	assert.Equal(t, "55", p.ID)
	assert.Equal(t, "Sunday Gathering", p.EventTitle)
	assert.Equal(t, []string{"Band", "Audio"}, p.Teams)
	require.Len(t, p.Rows, 3)
	assert.Equal(t, model.KindNormal, p.Rows[2].EffectiveKind())
	assert.Equal(t, 600, p.Rows[2].Duration)
	assert.Equal(t, "Full band", p.Rows[1].Notes["Band"])
	_, hasAudio := p.Rows[1].Notes["Audio"]
	assert.False(t, hasAudio, "null notes are dropped")
	assert.True(t, p.Start.Equal(time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)))
}

func TestPlanMalformed(t *testing.T) {
	cases := map[string]string{
		"missing start":   `{"data":{"id":"1","updated_at":"2025-03-07T20:05:00Z"}}`,
		"missing updated": `{"data":{"id":"1","start":"2025-03-09T15:00:00Z"}}`,
		"bad timestamp":   `{"data":{"id":"1","start":"next sunday","updated_at":"2025-03-07T20:05:00Z"}}`,
		"negative length": `{"data":{"id":"1","start":"2025-03-09T15:00:00Z","updated_at":"2025-03-07T20:05:00Z","rows":[{"duration":-1}]}}`,
		"empty":           `{"data":null}`,
		"not json":        `<html>maintenance</html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Plan(context.Background(), "1")
			assert.ErrorIs(t, err, model.ErrMalformedPlanData)
		})
	}
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})

	_, err := c.Plan(context.Background(), "404")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, err.Error(), "/v2/plans/404")
}

func TestTeamsDerivedFromNotes(t *testing.T) {
	rows := []model.ScheduleRow{
		{Notes: map[string]string{"Video": "a", "Audio": "b"}},
		{Notes: map[string]string{"Band": "c", "Audio": "d"}},
	}
	assert.Equal(t, []string{"Audio", "Video", "Band"}, normalizeTeams(nil, rows))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://api.example.org/v2/services?...(redacted)",
		redactURL("https://user:pw@api.example.org/v2/services?start=x&token=y"))
}

func TestNewClientRejectsBadBase(t *testing.T) {
	_, err := NewClient("ftp://example.org", nil, "")
	assert.Error(t, err)
}
