package pipeline

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"fmpmunge/internal/authority"
	"fmpmunge/internal/compose"
	"fmpmunge/internal/piped"
	"fmpmunge/internal/table"
)

// Input columns of the FileMaker export.
const (
	ColAuthoritizedName = "Authoritized Name"
	ColPosition         = "Position"
	ColAuthorityUsed    = "Authority Used"
	ColAuthorityID      = "Authority ID"
	ColSource           = "Source"
	ColURI              = "URI"
	ColOrgSources       = "Organization Name_sources"
	ColOrgSubjects      = "Organization Name_subjects"
	ColSubjectHeading   = "Subject Heading"
)

// Derived columns, in the order the catalog sequence adds them.
const (
	ColNamePersonOtherVIAF  = "namePersonOtherVIAF"
	ColNamePersonOtherLocal = "namePersonOtherLocal"
	ColNameType             = "Name Type"
	ColNamePersonCreatorLC  = "namePersonCreatorLC"
	ColNameCorpCreatorLC    = "nameCorpCreatorLC"
	ColNameCorpCreatorVIAF  = "nameCorpCreatorVIAF"
	ColNameCorpCreatorLocal = "nameCorpCreatorLocal"
	ColSubjectTopicsLC      = "subjectTopicsLC"
	ColSubjectTopicsLocal   = "subjectTopicsLocal"
)

// Source values that mark an LC name authority and a VIAF one.
const (
	sourceLCNAF = "LCNAF"
	sourceVIAF  = "VIAF"
)

// Name types returned by the entity type resolver.
const (
	namePersonal  = "Personal"
	nameCorporate = "Corporate"
)

// Deps are the collaborators of the catalog sequence.
type Deps struct {
	// Subjects resolves subject heading labels to URIs.
	Subjects authority.Resolver
	// NameTypes resolves a name authority URI to "Personal" or "Corporate".
	NameTypes authority.Resolver

	// Interval and Timeout pace and bound every remote lookup.
	Interval time.Duration
	Timeout  time.Duration

	Workers int
	Job     string
	Logger  *zap.Logger
}

var (
	personOtherVIAF = compose.MustTemplate(
		compose.Column(ColAuthoritizedName), compose.Literal(", "), compose.Column(ColPosition), compose.Literal(" "),
		compose.Call{Func: compose.BuildURI, Args: compose.ArgMap{"authority": ColAuthorityUsed, "id": ColAuthorityID}},
	)
	personOtherLocal = compose.MustTemplate(
		compose.Column(ColAuthoritizedName), compose.Literal(", "), compose.Column(ColPosition),
	)
	orgWithURI = compose.MustTemplate(
		compose.Column(ColOrgSources), compose.Literal(" "), compose.Column(ColURI),
	)
)

// RequiredColumns lists the export columns the catalog sequence reads.
func RequiredColumns() []string {
	return []string{
		ColAuthoritizedName, ColPosition, ColAuthorityUsed, ColAuthorityID,
		ColSource, ColURI, ColOrgSources, ColOrgSubjects, ColSubjectHeading,
	}
}

// Catalog returns the fixed catalog pass sequence. Later passes read columns
// written by earlier ones, so the order matters.
func Catalog(d Deps) []Pass {
	opts := func(kind string) authority.CacheOptions {
		return authority.CacheOptions{
			Interval: d.Interval,
			Timeout:  d.Timeout,
			Kind:     kind,
			Job:      d.Job,
			Logger:   d.Logger,
		}
	}

	return []Pass{
		RequirePass{Columns: RequiredColumns()},
		ComposePass{
			Rule: compose.Rule{
				Target:   ColNamePersonOtherVIAF,
				Template: personOtherVIAF,
				Mask:     compose.Mask{Column: ColAuthorityUsed, Value: "viaf"},
			},
			Workers: d.Workers,
		},
		ComposePass{
			Rule: compose.Rule{
				Target:   ColNamePersonOtherLocal,
				Template: personOtherLocal,
				Mask:     compose.Mask{Column: ColAuthorityUsed, Value: authority.LocalCode},
			},
			Workers: d.Workers,
		},
		EnrichPass{
			PassName: "name_type",
			Terms:    lcnafURIs,
			Resolver: d.NameTypes,
			Options:  opts("name_type"),
			Columns:  []string{ColNameType},
			Fn:       setNameType,
		},
		RowPass{
			PassName: "creator_lc",
			Columns:  []string{ColNamePersonCreatorLC, ColNameCorpCreatorLC},
			Fn:       setCreatorLC,
		},
		ComposePass{
			Rule: compose.Rule{
				Target:   ColNameCorpCreatorVIAF,
				Template: orgWithURI,
				Mask:     compose.Mask{Column: ColSource, Value: sourceVIAF},
			},
			Workers: d.Workers,
		},
		SuppressPass{Target: ColNameCorpCreatorVIAF, When: ColNameCorpCreatorLC},
		RowPass{
			PassName: ColNameCorpCreatorLocal,
			Columns:  []string{ColNameCorpCreatorLocal},
			Fn:       setCorpCreatorLocal,
		},
		EnrichPass{
			PassName: "subject_topics",
			Source:   ColSubjectHeading,
			Resolver: d.Subjects,
			Options:  opts("subject"),
			Columns:  []string{ColSubjectTopicsLC, ColSubjectTopicsLocal},
			Fn:       setSubjectTopics,
		},
	}
}

// firstLCNAFURI returns the URI aligned with the first LCNAF source of row,
// or "" when the row has none. Only the first match is used.
func firstLCNAFURI(row table.Row) (string, error) {
	i := slices.Index(piped.Split(row[ColSource]), sourceLCNAF)
	if i < 0 {
		return "", nil
	}
	uri, err := piped.At(row[ColURI], i)
	if err != nil {
		return "", &compose.CellError{Column: ColURI, Err: err}
	}
	return uri, nil
}

// lcnafURIs collects the distinct first-LCNAF URIs across the table.
func lcnafURIs(tbl *table.Table) ([]string, error) {
	var uris []string
	for i, row := range tbl.Rows {
		uri, err := firstLCNAFURI(row)
		if err != nil {
			return nil, rowError("name_type", i, err)
		}
		uris = append(uris, uri)
	}
	return piped.Unique(uris...), nil
}

func setNameType(row table.Row, cache authority.Cache) error {
	uri, err := firstLCNAFURI(row)
	if err != nil {
		return err
	}
	row[ColNameType] = cache[uri]
	return nil
}

var (
	personCreatorLC = compose.Rule{
		Target:   ColNamePersonCreatorLC,
		Template: orgWithURI,
		Mask:     compose.Mask{Column: ColSource, Value: sourceLCNAF},
	}
	corpCreatorLC = compose.Rule{
		Target:   ColNameCorpCreatorLC,
		Template: orgWithURI,
		Mask:     compose.Mask{Column: ColSource, Value: sourceLCNAF},
	}
)

// setCreatorLC routes the LCNAF organization/URI pairs into the personal or
// corporate creator column according to Name Type and clears the other.
func setCreatorLC(row table.Row) error {
	row[ColNamePersonCreatorLC] = ""
	row[ColNameCorpCreatorLC] = ""

	var rule compose.Rule
	switch row[ColNameType] {
	case namePersonal:
		rule = personCreatorLC
	case nameCorporate:
		rule = corpCreatorLC
	default:
		return nil
	}
	v, err := rule.Value(row)
	if err != nil {
		return err
	}
	row[rule.Target] = v
	return nil
}

// setCorpCreatorLocal fills the local corporate creator only when neither an
// LC nor a VIAF corporate name exists. The sources sheet wins over the
// subjects sheet.
func setCorpCreatorLocal(row table.Row) error {
	row[ColNameCorpCreatorLocal] = ""
	if row[ColNameCorpCreatorLC] != "" || row[ColNameCorpCreatorVIAF] != "" {
		return nil
	}
	if v := piped.First(row[ColOrgSources]); v != "" {
		row[ColNameCorpCreatorLocal] = v
		return nil
	}
	row[ColNameCorpCreatorLocal] = piped.First(row[ColOrgSubjects])
	return nil
}

// setSubjectTopics splits Subject Heading into controlled terms ("term uri")
// and local terms.
func setSubjectTopics(row table.Row, cache authority.Cache) error {
	var lc, local []string
	for _, term := range piped.Split(row[ColSubjectHeading]) {
		if term == "" {
			continue
		}
		if uri, ok := cache.Lookup(term); ok {
			lc = append(lc, term+" "+uri)
		} else {
			local = append(local, term)
		}
	}
	row[ColSubjectTopicsLC] = piped.Join(lc)
	row[ColSubjectTopicsLocal] = piped.Join(local)
	return nil
}
