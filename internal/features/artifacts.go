package features

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/keiba-engine/internal/models"
)

// BundleVersion is bumped whenever the bundle schema changes incompatibly.
const BundleVersion = 1

// Categorical columns encoded at fit time, in fixed order.
var CategoryColumns = []string{
	"horse_id",
	"jockey_id",
	"trainer_id",
	"sire_id",
	"damsire_id",
	"course_type",
	"weather",
	"condition",
}

// FeatureWeight is one entry of the optional model feature-importance
// summary carried for diagnostics.
type FeatureWeight struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ArtifactBundle is the frozen, self-contained output of one fitting run:
// every frozen statistic map, the course bucket table and the fitted
// categorical encoders. It is created once, persisted, and loaded read-only
// by every subsequent transform; it is never mutated after creation and is
// safe to share across concurrent transforms.
type ArtifactBundle struct {
	ID          string    `json:"id"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	FitRowCount int       `json:"fit_row_count"`
	// MaxFitDate is the training cutoff: frozen rates reflect every
	// fit-corpus record dated on or before it.
	MaxFitDate time.Time `json:"max_fit_date"`

	JockeyWinRate  StatMap `json:"jockey_win_rate"`
	TrainerWinRate StatMap `json:"trainer_win_rate"`
	SireWinRate    StatMap `json:"sire_win_rate"`
	DamsireWinRate StatMap `json:"damsire_win_rate"`

	CourseAptitude   NestedStatMap `json:"course_aptitude"`
	DistanceAptitude NestedStatMap `json:"distance_aptitude"`

	CourseBuckets CourseBucketTable        `json:"course_buckets"`
	Encoders      map[string]*LabelEncoder `json:"encoders"`

	FeatureImportance []FeatureWeight `json:"feature_importance,omitempty"`
}

func newBundle() *ArtifactBundle {
	return &ArtifactBundle{
		ID:        uuid.New().String(),
		Version:   BundleVersion,
		CreatedAt: time.Now().UTC(),
		Encoders:  make(map[string]*LabelEncoder),
	}
}

// Validate checks the invariants a transform relies on.
func (b *ArtifactBundle) Validate() error {
	if b.Version != BundleVersion {
		return fmt.Errorf("unsupported artifact bundle version %d (want %d)", b.Version, BundleVersion)
	}
	for _, col := range CategoryColumns {
		enc, ok := b.Encoders[col]
		if !ok {
			return fmt.Errorf("artifact bundle has no encoder for column %q", col)
		}
		if err := enc.Validate(); err != nil {
			return fmt.Errorf("encoder %q: %w", col, err)
		}
	}
	return nil
}

// Save persists the bundle as JSON, creating parent directories as needed.
func (b *ArtifactBundle) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact bundle: %w", err)
	}
	return nil
}

// LoadBundle reads a previously persisted bundle. A missing file surfaces
// as models.ErrArtifactsMissing, the one actionable failure of the
// transform path.
func LoadBundle(path string) (*ArtifactBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w (looked in %s)", models.ErrArtifactsMissing, path)
		}
		return nil, fmt.Errorf("failed to read artifact bundle: %w", err)
	}

	bundle := &ArtifactBundle{}
	if err := json.Unmarshal(data, bundle); err != nil {
		return nil, fmt.Errorf("failed to parse artifact bundle: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return bundle, nil
}
