package explore

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/przepisy/internal/recipes"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Location
	}{
		{
			name:  "empty",
			query: "",
			want:  Location{Query: DefaultQuery(), Page: 1},
		},
		{
			name:  "all set",
			query: "q=+zupa+&limit=24&sort=name.asc",
			want:  Location{Query: QueryState{Term: "zupa", PageSize: 24, Sort: recipes.SortNameAsc}, Page: 1},
		},
		{
			name:  "size alias",
			query: "size=48",
			want:  Location{Query: QueryState{PageSize: 48, Sort: recipes.SortCreatedDesc}, Page: 1},
		},
		{
			name:  "limit wins over size",
			query: "limit=24&size=48",
			want:  Location{Query: QueryState{PageSize: 24, Sort: recipes.SortCreatedDesc}, Page: 1},
		},
		{
			name:  "invalid sort",
			query: "sort=invalid.value",
			want:  Location{Query: DefaultQuery(), Page: 1},
		},
		{
			name:  "size not offered",
			query: "limit=13",
			want:  Location{Query: DefaultQuery(), Page: 1},
		},
		{
			name:  "size not a number",
			query: "limit=abc",
			want:  Location{Query: DefaultQuery(), Page: 1},
		},
		{
			name:  "negative size",
			query: "limit=-12",
			want:  Location{Query: DefaultQuery(), Page: 1},
		},
		{
			name:  "page clamped",
			query: "page=0",
			want:  Location{Query: DefaultQuery(), Page: 1},
		},
		{
			name:  "page kept",
			query: "page=5",
			want:  Location{Query: DefaultQuery(), Page: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, ParseLocation(v)); diff != "" {
				t.Errorf("ParseLocation(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestEncodeLocation_OmitsDefaults(t *testing.T) {
	assert.Empty(t, EncodeLocation(DefaultQuery()))
	assert.Empty(t, EncodeLocation(QueryState{Term: "   "}))

	v := EncodeLocation(QueryState{Term: "zupa", PageSize: 48, Sort: recipes.SortNameDesc})
	assert.Equal(t, "limit=48&q=zupa&sort=name.desc", v.Encode())

	v = EncodeLocation(QueryState{Term: "zupa", PageSize: 12, Sort: recipes.SortCreatedDesc})
	assert.Equal(t, "q=zupa", v.Encode())
}

func TestLocationRoundTrip(t *testing.T) {
	terms := []string{"", "a", "zupa", "  pierogi ruskie ", "żurek & chleb", "50%"}
	sizes := []int{0, 12, 24, 48, 13, -1}
	sorts := append([]recipes.SortKey{"", "bogus"}, recipes.SortKeys...)

	for _, term := range terms {
		for _, size := range sizes {
			for _, sort := range sorts {
				s := QueryState{Term: term, PageSize: size, Sort: sort}
				encoded := EncodeLocation(s).Encode()
				parsed, err := url.ParseQuery(encoded)
				require.NoError(t, err)
				assert.Equal(t, Normalize(s), ParseLocation(parsed).Query, "round trip of %+v via %q", s, encoded)
			}
		}
	}
}

func TestLocationValues_Page(t *testing.T) {
	assert.Equal(t, "", Location{Query: DefaultQuery(), Page: 1}.Values().Encode())
	assert.Equal(t, "page=3", Location{Query: DefaultQuery(), Page: 3}.Values().Encode())
}

func TestApply_KeepsForeignParams(t *testing.T) {
	u, err := url.Parse("/explore?lang=pl&size=24&page=2&q=old")
	require.NoError(t, err)

	got := Apply(u, Location{Query: QueryState{Term: "nowy", PageSize: 24, Sort: recipes.SortCreatedDesc}})
	assert.Equal(t, "/explore?lang=pl&limit=24&q=nowy", got.String())
	// input untouched
	assert.Equal(t, "lang=pl&size=24&page=2&q=old", u.RawQuery)
}

func TestParseAddress(t *testing.T) {
	u, loc, err := ParseAddress(" /explore?q=bigos&sort=name.asc ")
	require.NoError(t, err)
	assert.Equal(t, "/explore", u.Path)
	assert.Equal(t, "bigos", loc.Query.Term)
	assert.Equal(t, recipes.SortNameAsc, loc.Query.Sort)

	_, _, err = ParseAddress("http://[::1")
	assert.Error(t, err)
}

func TestSync_ReplacesOnlyOnChange(t *testing.T) {
	nav, err := NewMemoryNavigator("/explore?sort=name.asc")
	require.NoError(t, err)
	sync := Sync(nav)

	sync(Location{Query: QueryState{PageSize: 12, Sort: recipes.SortNameAsc}})
	assert.Equal(t, 0, nav.Replacements())

	sync(Location{Query: QueryState{Term: "zupa", PageSize: 12, Sort: recipes.SortNameAsc}})
	assert.Equal(t, 1, nav.Replacements())
	assert.Equal(t, "/explore?q=zupa&sort=name.asc", nav.String())

	sync(Location{Query: DefaultQuery()})
	assert.Equal(t, 2, nav.Replacements())
	assert.Equal(t, "/explore", nav.String())
}

func TestMemoryNavigator_LocationIsACopy(t *testing.T) {
	nav, err := NewMemoryNavigator("/explore?q=zupa")
	require.NoError(t, err)

	u := nav.Location()
	u.RawQuery = "q=changed"
	assert.Equal(t, "/explore?q=zupa", nav.String())
}
