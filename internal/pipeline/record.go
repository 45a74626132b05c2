package pipeline

import (
	"time"

	"github.com/forest-guardian/regen-insights/internal/raster"
)

// Record is the regeneration summary of one parcel at one computation time.
// Field names follow the persisted column names.
type Record struct {
	ID          string    `json:"id,omitempty" csv:"id"`
	ProjectID   *string   `json:"project_id,omitempty" csv:"project_id"`
	AreaName    string    `json:"area_name" csv:"area_name"`
	StoragePath string    `json:"storage_path" csv:"storage_path"`
	MinNDVI     float64   `json:"min_ndvi" csv:"min_ndvi"`
	MaxNDVI     float64   `json:"max_ndvi" csv:"max_ndvi"`
	MeanNDVI    float64   `json:"mean_ndvi" csv:"mean_ndvi"`
	RegenScore  int       `json:"regen_score" csv:"regen_score"`
	Insight     string    `json:"insight" csv:"insight"`
	ComputedAt  time.Time `json:"computed_at" csv:"computed_at"`
}

// Artifact is an encoded derived raster ready to be stored under Name.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
	// SHA256 is the hex digest of Data.
	SHA256 string
}

// Result is everything one successful run hands to persistence.
type Result struct {
	Record   Record
	Artifact Artifact
	// Index is the NDVI grid the artifact was encoded from, kept for previews.
	Index *raster.Grid
}
