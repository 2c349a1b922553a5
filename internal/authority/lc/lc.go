// Package lc resolves terms against the Library of Congress linked data
// service (id.loc.gov).
//
// Two lookups are supported: a subject label lookup, which follows the
// service's label redirect to the canonical subject URI, and an entity type
// lookup, which reads the JSON-LD record for a name URI and classifies it as
// a personal or corporate name.
package lc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"fmpmunge/internal/authority"
	"fmpmunge/internal/datasource/httpds"
)

// DefaultBaseURL is the public id.loc.gov endpoint.
const DefaultBaseURL = "https://id.loc.gov"

// maxRecordBytes caps the JSON-LD record read by EntityType.
const maxRecordBytes = 4 << 20

// MADS/RDF classes that mark the kind of a name authority.
const (
	madsCorporateName = "http://www.loc.gov/mads/rdf/v1#CorporateName"
	madsPersonalName  = "http://www.loc.gov/mads/rdf/v1#PersonalName"
)

// NameType classifies a name authority record.
type NameType string

const (
	Unknown   NameType = ""
	Personal  NameType = "Personal"
	Corporate NameType = "Corporate"
)

// Client talks to id.loc.gov over an httpds.Client.
type Client struct {
	base string
	http *httpds.Client
}

// NewClient returns a Client rooted at baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, hc *httpds.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = httpds.NewClient(httpds.Config{})
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// SubjectURI looks up the canonical subject heading URI for label.
//
// The label endpoint redirects to the record; the final location, minus any
// ".json" serialization suffix, is the URI. A 300 Multiple Choices answer
// means the label matches several headings and yields authority.ErrAmbiguous.
// Any other non-2xx answer yields authority.ErrNotFound.
func (c *Client) SubjectURI(ctx context.Context, label string) (string, error) {
	endpoint := c.base + "/authorities/subjects/label/" + url.PathEscape(label)

	resp, err := c.http.Head(ctx, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("lc: subject %q: %w", label, err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMultipleChoices:
		return "", fmt.Errorf("lc: subject %q: %w", label, authority.ErrAmbiguous)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("lc: subject %q: status %d: %w", label, resp.StatusCode, authority.ErrNotFound)
	}
	return strings.TrimSuffix(httpds.FinalURL(resp), ".json"), nil
}

// node is the part of a JSON-LD node EntityType inspects.
type node struct {
	ID   string   `json:"@id"`
	Type typeList `json:"@type"`
}

// typeList accepts "@type" as either a single IRI or an array of IRIs.
type typeList []string

func (t *typeList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*t = typeList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

// EntityType fetches the JSON-LD record for uri and classifies it.
//
// A record without a node for uri, or whose node carries neither MADS name
// class, is Unknown with a nil error. Transport failures, non-2xx answers and
// undecodable bodies return Unknown with an error.
func (c *Client) EntityType(ctx context.Context, uri string) (NameType, error) {
	res, err := c.http.Fetch(ctx, uri+".json", maxRecordBytes, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return Unknown, fmt.Errorf("lc: record %s: %w", uri, err)
	}
	if res.Status < 200 || res.Status > 299 {
		return Unknown, fmt.Errorf("lc: record %s: status %d: %w", uri, res.Status, authority.ErrNotFound)
	}

	var graph []node
	if err := json.Unmarshal(res.Body, &graph); err != nil {
		return Unknown, fmt.Errorf("lc: decode record %s: %w", uri, err)
	}
	for _, n := range graph {
		if n.ID != uri {
			continue
		}
		switch {
		case slices.Contains(n.Type, madsCorporateName):
			return Corporate, nil
		case slices.Contains(n.Type, madsPersonalName):
			return Personal, nil
		}
		return Unknown, nil
	}
	return Unknown, nil
}

// Subjects exposes SubjectURI as an authority.Resolver.
func (c *Client) Subjects() authority.Resolver {
	return authority.ResolverFunc(c.SubjectURI)
}

// EntityTypes exposes EntityType as an authority.Resolver. Unknown results
// resolve to "" and are therefore left out of a cache.
func (c *Client) EntityTypes() authority.Resolver {
	return authority.ResolverFunc(func(ctx context.Context, uri string) (string, error) {
		t, err := c.EntityType(ctx, uri)
		return string(t), err
	})
}
