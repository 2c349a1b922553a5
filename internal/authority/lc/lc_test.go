package lc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmpmunge/internal/authority"
	"fmpmunge/internal/datasource/httpds"
)

// fakeLC mimics the parts of id.loc.gov the client uses.
type fakeLC struct {
	srv         *httptest.Server
	labelHits   atomic.Int32
	recordHits  atomic.Int32
	subjects    map[string]string // label -> subject id
	ambiguous   map[string]bool
	recordTypes map[string]string // name id -> JSON "@type" value
}

func newFakeLC(t *testing.T) *fakeLC {
	t.Helper()
	f := &fakeLC{
		subjects:    map[string]string{"Cats": "sh85021262", "Dogs Wild": "sh85038796"},
		ambiguous:   map[string]bool{"Mercury": true},
		recordTypes: map[string]string{},
	}

	r := chi.NewRouter()
	r.Head("/authorities/subjects/label/{label}", func(w http.ResponseWriter, req *http.Request) {
		f.labelHits.Add(1)
		label := chi.URLParam(req, "label")
		if f.ambiguous[label] {
			w.WriteHeader(http.StatusMultipleChoices)
			return
		}
		id, ok := f.subjects[label]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Redirect(w, req, "/authorities/subjects/"+id+".json", http.StatusSeeOther)
	})
	r.Head("/authorities/subjects/{file}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/authorities/names/{file}", func(w http.ResponseWriter, req *http.Request) {
		f.recordHits.Add(1)
		file := chi.URLParam(req, "file")
		id := file[:len(file)-len(".json")]
		typ, ok := f.recordTypes[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		uri := f.srv.URL + "/authorities/names/" + id
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"@id":"%s/other","@type":["http://www.loc.gov/mads/rdf/v1#Topic"]},{"@id":%q,"@type":%s}]`, f.srv.URL, uri, typ)
	})

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLC) client() *Client {
	return NewClient(f.srv.URL, httpds.NewClient(httpds.Config{Timeout: 2 * time.Second}))
}

func (f *fakeLC) nameURI(id string) string {
	return f.srv.URL + "/authorities/names/" + id
}

func TestSubjectURI(t *testing.T) {
	f := newFakeLC(t)
	c := f.client()
	ctx := context.Background()

	uri, err := c.SubjectURI(ctx, "Cats")
	require.NoError(t, err)
	assert.Equal(t, f.srv.URL+"/authorities/subjects/sh85021262", uri)

	uri, err = c.SubjectURI(ctx, "Dogs Wild")
	require.NoError(t, err)
	assert.Equal(t, f.srv.URL+"/authorities/subjects/sh85038796", uri)
}

func TestSubjectURIFailures(t *testing.T) {
	f := newFakeLC(t)
	c := f.client()

	_, err := c.SubjectURI(context.Background(), "Mercury")
	assert.ErrorIs(t, err, authority.ErrAmbiguous)

	_, err = c.SubjectURI(context.Background(), "Nonexistent heading")
	assert.ErrorIs(t, err, authority.ErrNotFound)
}

func TestSubjectsResolverFeedsCache(t *testing.T) {
	f := newFakeLC(t)
	c := f.client()

	cache, st, err := authority.BuildCache(context.Background(),
		[]string{"Cats", "Mercury", "Unheard of"}, c.Subjects(), authority.CacheOptions{Kind: "subject"})
	require.NoError(t, err)

	assert.Equal(t, authority.Cache{"Cats": f.srv.URL + "/authorities/subjects/sh85021262"}, cache)
	assert.Equal(t, 2, st.Failed)
	assert.EqualValues(t, 3, f.labelHits.Load())
}

func TestEntityType(t *testing.T) {
	f := newFakeLC(t)
	f.recordTypes["n1"] = `["http://www.loc.gov/mads/rdf/v1#CorporateName","http://www.loc.gov/mads/rdf/v1#Authority"]`
	f.recordTypes["n2"] = `["http://www.loc.gov/mads/rdf/v1#PersonalName"]`
	f.recordTypes["n3"] = `"http://www.loc.gov/mads/rdf/v1#PersonalName"`
	f.recordTypes["n4"] = `["http://www.loc.gov/mads/rdf/v1#Geographic"]`
	f.recordTypes["n5"] = `[]`
	c := f.client()

	tests := []struct {
		id   string
		want NameType
	}{
		{"n1", Corporate},
		{"n2", Personal},
		{"n3", Personal},
		{"n4", Unknown},
		{"n5", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := c.EntityType(context.Background(), f.nameURI(tt.id))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntityTypeFetchFailureIsUnknown(t *testing.T) {
	f := newFakeLC(t)
	c := f.client()

	got, err := c.EntityType(context.Background(), f.nameURI("missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, authority.ErrNotFound))
	assert.Equal(t, Unknown, got)
}

func TestEntityTypesResolverSkipsUnknown(t *testing.T) {
	f := newFakeLC(t)
	f.recordTypes["n1"] = `["http://www.loc.gov/mads/rdf/v1#CorporateName"]`
	f.recordTypes["n4"] = `["http://www.loc.gov/mads/rdf/v1#Topic"]`
	c := f.client()

	terms := []string{f.nameURI("n1"), f.nameURI("n4"), f.nameURI("missing")}
	cache, _, err := authority.BuildCache(context.Background(), terms, c.EntityTypes(), authority.CacheOptions{Kind: "name_type"})
	require.NoError(t, err)

	assert.Equal(t, authority.Cache{f.nameURI("n1"): "Corporate"}, cache)
	assert.EqualValues(t, 3, f.recordHits.Load())
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", nil)
	assert.Equal(t, DefaultBaseURL, c.base)
	assert.NotNil(t, c.http)

	c = NewClient("http://example.test/", nil)
	assert.Equal(t, "http://example.test", c.base)
}
