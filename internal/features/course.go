package features

import (
	"fmt"
	"math"

	"github.com/yourusername/keiba-engine/internal/models"
)

// CourseBucket holds the finishing-time distribution of one
// (course type, distance) population. Std is the sample standard deviation
// and stays 0 for single-record buckets; SpeedIndex substitutes 1 for a
// zero std so the index is always finite.
type CourseBucket struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

// CourseBucketTable maps "courseType:distance" keys to bucket statistics.
// String keys keep the table JSON-serializable inside the artifact bundle.
type CourseBucketTable map[string]CourseBucket

// BucketKey builds the table key for a (course type, distance) pair.
func BucketKey(courseType string, distance int) string {
	return fmt.Sprintf("%s:%d", courseType, distance)
}

// FitCourseBuckets computes mean and sample std of finishing time per
// (course type, distance) over records with a valid positive time.
func FitCourseBuckets(records []*models.ParticipationRecord) CourseBucketTable {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	times := make(map[string][]float64)

	for _, r := range records {
		t, ok := ParseSeconds(r.Time)
		if !ok || t <= 0 {
			continue
		}
		key := BucketKey(r.CourseType, r.Distance)
		sums[key] += t
		counts[key]++
		times[key] = append(times[key], t)
	}

	table := make(CourseBucketTable, len(counts))
	for key, n := range counts {
		mean := sums[key] / float64(n)
		std := 0.0
		if n > 1 {
			var sq float64
			for _, t := range times[key] {
				d := t - mean
				sq += d * d
			}
			std = math.Sqrt(sq / float64(n-1))
		}
		table[key] = CourseBucket{Mean: mean, Std: std, Count: n}
	}
	return table
}

// SpeedIndex converts a finishing time into the course-normalized
// performance index: a sign-inverted z-score, so faster than the bucket
// average yields a positive value. Records with no valid time, or courses
// with no fitted bucket, get 0.
func (t CourseBucketTable) SpeedIndex(courseType string, distance int, raw string) float64 {
	sec, ok := ParseSeconds(raw)
	if !ok || sec <= 0 {
		return 0
	}
	bucket, ok := t[BucketKey(courseType, distance)]
	if !ok || bucket.Count == 0 {
		return 0
	}
	std := bucket.Std
	if std == 0 {
		std = 1
	}
	return (bucket.Mean - sec) / std
}
