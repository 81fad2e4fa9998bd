package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plansheet/internal/model"
)

type fakeFetcher struct {
	details map[string]model.ServiceDetail
	calls   []string
	err     error
}

func (f *fakeFetcher) ServiceDetail(_ context.Context, id string) (model.ServiceDetail, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return model.ServiceDetail{}, f.err
	}
	return f.details[id], nil
}

type fakeChooser struct {
	index int
	ok    bool
	seen  []Option
}

func (c *fakeChooser) Choose(_ context.Context, _ string, opts []Option) (int, bool, error) {
	c.seen = opts
	return c.index, c.ok, nil
}

func service(id, title string, plans ...string) model.ServiceDetail {
	d := model.ServiceDetail{ServiceSummary: model.ServiceSummary{
		ID: id, Title: title, Start: time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC),
	}}
	for _, p := range plans {
		d.Plans = append(d.Plans, model.PlanSummary{ID: p, Title: "Plan " + p})
	}
	return d
}

func summaries(ds ...model.ServiceDetail) []model.ServiceSummary {
	out := make([]model.ServiceSummary, len(ds))
	for i, d := range ds {
		out[i] = d.ServiceSummary
	}
	return out
}

func TestSelectServiceExplicitIDSkipsSearch(t *testing.T) {
	f := &fakeFetcher{}
	s := &Selector{Fetcher: f}

	got, err := s.SelectService(context.Background(), " 42 ", nil)

	require.NoError(t, err)
	assert.Equal(t, "42", got.ID)
	assert.Nil(t, got.Detail)
	assert.Empty(t, f.calls)
}

func TestSelectServiceSingleEligible(t *testing.T) {
	a := service("1", "Early", "p1")
	b := service("2", "Empty")
	f := &fakeFetcher{details: map[string]model.ServiceDetail{"1": a, "2": b}}
	s := &Selector{Fetcher: f}

	got, err := s.SelectService(context.Background(), "", summaries(a, b))

	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
	require.NotNil(t, got.Detail)
	assert.Len(t, got.Detail.Plans, 1)
	assert.Equal(t, []string{"1", "2"}, f.calls)
}

func TestSelectServiceNoneEligible(t *testing.T) {
	a := service("1", "Empty")
	s := &Selector{Fetcher: &fakeFetcher{details: map[string]model.ServiceDetail{"1": a}}}

	_, err := s.SelectService(context.Background(), "", summaries(a))
	assert.ErrorIs(t, err, ErrNoEligibleService)

	_, err = s.SelectService(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNoEligibleService)
}

func TestSelectServiceAmbiguousUnattended(t *testing.T) {
	a := service("1", "Early", "p1")
	b := service("2", "Late", "p2")
	s := &Selector{Fetcher: &fakeFetcher{details: map[string]model.ServiceDetail{"1": a, "2": b}}}

	_, err := s.SelectService(context.Background(), "", summaries(a, b))

	require.ErrorIs(t, err, ErrAmbiguousSelection)
	var amb *AmbiguousError
	require.True(t, errors.As(err, &amb))
	require.Len(t, amb.Candidates, 2)
	assert.Equal(t, "1", amb.Candidates[0].ID)
	assert.Contains(t, err.Error(), "Late")
	assert.Contains(t, err.Error(), "id 2")
}

func TestSelectServiceInteractive(t *testing.T) {
	a := service("1", "Early", "p1")
	b := service("2", "Late", "p2")
	f := &fakeFetcher{details: map[string]model.ServiceDetail{"1": a, "2": b}}

	ch := &fakeChooser{index: 1, ok: true}
	s := &Selector{Fetcher: f, Chooser: ch, Interactive: true}
	got, err := s.SelectService(context.Background(), "", summaries(a, b))
	require.NoError(t, err)
	assert.Equal(t, "2", got.ID)
	assert.Len(t, ch.seen, 2)

	s.Chooser = &fakeChooser{ok: false}
	_, err = s.SelectService(context.Background(), "", summaries(a, b))
	assert.ErrorIs(t, err, ErrNoSelectionMade)

	s.Chooser = nil
	_, err = s.SelectService(context.Background(), "", summaries(a, b))
	assert.ErrorIs(t, err, ErrNoSelectionMade)
}

func TestSelectServiceFetchErrorIsFatal(t *testing.T) {
	a := service("1", "Early", "p1")
	s := &Selector{Fetcher: &fakeFetcher{err: errors.New("503 Service Unavailable")}}

	_, err := s.SelectService(context.Background(), "", summaries(a))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "service 1")
}

func TestSelectPlan(t *testing.T) {
	s := &Selector{}

	_, err := s.SelectPlan(context.Background(), service("1", "None"))
	assert.ErrorIs(t, err, ErrNoPlanFound)

	p, err := s.SelectPlan(context.Background(), service("1", "One", "p1"))
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	_, err = s.SelectPlan(context.Background(), service("1", "Two", "p1", "p2"))
	assert.ErrorIs(t, err, ErrAmbiguousPlan)

	s = &Selector{Interactive: true, Chooser: &fakeChooser{index: 1, ok: true}}
	p, err = s.SelectPlan(context.Background(), service("1", "Two", "p1", "p2"))
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)

	s.Chooser = &fakeChooser{index: 7, ok: true}
	_, err = s.SelectPlan(context.Background(), service("1", "Two", "p1", "p2"))
	assert.ErrorIs(t, err, ErrNoSelectionMade)
}

func TestLabelsUseConfiguredZone(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	a := service("1", "Early", "p1")
	b := service("2", "Late", "p2")
	s := &Selector{Fetcher: &fakeFetcher{details: map[string]model.ServiceDetail{"1": a, "2": b}}, Zone: chicago}

	_, err = s.SelectService(context.Background(), "", summaries(a, b))

	var amb *AmbiguousError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, "Early · Sun Mar 9 04:00 CDT", amb.Candidates[0].Label)

	detail := service("1", "Early")
	detail.Plans = []model.PlanSummary{
		{ID: "p1", Title: "First", Start: time.Date(2025, 3, 9, 15, 30, 0, 0, time.UTC)},
		{ID: "p2", Title: "Second"},
	}
	_, err = s.SelectPlan(context.Background(), detail)
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, "1. First · Sun Mar 9 10:30 CDT", amb.Candidates[0].Label)
	assert.Equal(t, "2. Second", amb.Candidates[1].Label)
}
