package orchestration

import (
	"fmt"
	"path/filepath"

	"github.com/spboyer/posegen/internal/models"
	"github.com/spboyer/posegen/internal/naming"
)

// FilterJobs returns the subset of jobs whose Sanskrit name, English name
// slug or section matches at least one of the given glob patterns. An empty
// patterns slice returns all jobs unchanged. Job indexes are kept, so output
// filenames match those of a full run.
func FilterJobs(jobs []models.Job, patterns []string) ([]models.Job, error) {
	if len(patterns) == 0 {
		return jobs, nil
	}

	var matched []models.Job
	for _, job := range jobs {
		ok, err := matchesAny(job, patterns)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, job)
		}
	}
	return matched, nil
}

// matchesAny reports whether any of a job's names matches any pattern.
func matchesAny(job models.Job, patterns []string) (bool, error) {
	candidates := []string{
		job.Pose.Sanskrit,
		naming.Slugify(job.Pose.Sanskrit),
		naming.ExtractEnglishName(job.Pose.Translation),
		job.Section,
	}

	for _, p := range patterns {
		for _, c := range candidates {
			if c == "" {
				continue
			}
			ok, err := filepath.Match(p, c)
			if err != nil {
				return false, fmt.Errorf("invalid job filter pattern %q: %w", p, err)
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}
