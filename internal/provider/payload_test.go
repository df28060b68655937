package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/experiment"
)

const sampleDocument = `{
	"/": {"segment": 80, "version_a": "index.html", "version_b": "index_b.html"},
	"/promo": {"segment": 0, "version_a": "/promo.html", "version_b": "/promo_b.html"}
}`

func TestParseDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		doc      string
		want     experiment.SegmentationRule
		wantKind error
	}{
		{
			name: "normalizes bare object names",
			path: "/",
			doc:  sampleDocument,
			want: experiment.SegmentationRule{Path: "/", SplitThreshold: 80, VariantA: "/index.html", VariantB: "/index_b.html"},
		},
		{
			name: "zero segment is present, not missing",
			path: "/promo",
			doc:  sampleDocument,
			want: experiment.SegmentationRule{Path: "/promo", SplitThreshold: 0, VariantA: "/promo.html", VariantB: "/promo_b.html"},
		},
		{name: "unknown path", path: "/other", doc: sampleDocument, wantKind: experiment.ErrConfigMissing},
		{name: "invalid json", path: "/", doc: `{"/":`, wantKind: experiment.ErrConfigParse},
		{name: "null document", path: "/", doc: `null`, wantKind: experiment.ErrConfigParse},
		{name: "not an object", path: "/", doc: `[1,2]`, wantKind: experiment.ErrConfigParse},
		{name: "segment as string", path: "/", doc: `{"/":{"segment":"80","version_a":"a","version_b":"b"}}`, wantKind: experiment.ErrConfigParse},
		{name: "missing segment", path: "/", doc: `{"/":{"version_a":"a","version_b":"b"}}`, wantKind: experiment.ErrConfigParse},
		{name: "missing version_a", path: "/", doc: `{"/":{"segment":5,"version_b":"b"}}`, wantKind: experiment.ErrConfigParse},
		{name: "missing version_b", path: "/", doc: `{"/":{"segment":5,"version_a":"a"}}`, wantKind: experiment.ErrConfigParse},
		{name: "empty version", path: "/", doc: `{"/":{"segment":5,"version_a":"","version_b":"b"}}`, wantKind: experiment.ErrConfigParse},
		{name: "segment out of range", path: "/", doc: `{"/":{"segment":101,"version_a":"a","version_b":"b"}}`, wantKind: experiment.ErrConfigParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDocument("test", tt.path, []byte(tt.doc))

			if tt.wantKind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantKind)
				assert.Equal(t, experiment.SegmentationRule{}, got, "failures never carry a partial rule")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
