package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Piebald-AI/splitrail/internal/cachestore"
	"github.com/Piebald-AI/splitrail/internal/decoder"
	"github.com/Piebald-AI/splitrail/internal/journal"
	"github.com/Piebald-AI/splitrail/internal/snapshot"
	"github.com/Piebald-AI/splitrail/internal/watch"
	"github.com/Piebald-AI/splitrail/pkg/config"
	"github.com/Piebald-AI/splitrail/pkg/statedir"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

// Doctor performs environment and state health checks.
type Doctor struct {
	cfg *config.Config
}

// NewDoctor creates a new doctor.
func NewDoctor(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Check runs all diagnostic checks. Only critical findings mark the
// result unhealthy: stale or corrupt cache state rebuilds itself on the
// next run and never rates above a warning.
func (d *Doctor) Check(strict bool) (*Result, error) {
	result := &Result{Healthy: true}

	// 1. Check the state directory is usable
	d.checkStateDir(result)

	// 2. Check source tool availability
	d.checkDecoders(result)

	// 3. Check filesystem notifications
	d.checkWatch(result)

	// 4. Check the cache store loads
	d.checkStore(result)

	// 5. Deep integrity checks (if strict)
	if strict {
		d.checkIntegrity(result)
	}

	// 6. Check for orphan tmp files
	d.checkOrphanTmp(result)

	return result, nil
}

func (d *Doctor) checkStateDir(result *Result) {
	root, err := statedir.Root()
	if err != nil {
		result.Findings = append(result.Findings, Finding{
			Category:    "state",
			Description: fmt.Sprintf("cannot resolve state directory: %v", err),
			Severity:    "critical",
		})
		result.Healthy = false
		return
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		result.Findings = append(result.Findings, Finding{
			Category:    "state",
			Description: fmt.Sprintf("cannot create state directory: %v", err),
			Severity:    "critical",
			Path:        root,
		})
		result.Healthy = false
		return
	}
	probe := filepath.Join(root, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		result.Findings = append(result.Findings, Finding{
			Category:    "state",
			Description: fmt.Sprintf("state directory not writable: %v", err),
			Severity:    "critical",
			Path:        root,
		})
		result.Healthy = false
		return
	}
	os.Remove(probe)
}

func (d *Doctor) checkDecoders(result *Result) {
	available := 0
	for _, dec := range decoder.All() {
		tag := dec.Tag()
		if !d.cfg.DecoderEnabled(tag) {
			result.Findings = append(result.Findings, Finding{
				Category:    "decoder",
				Description: fmt.Sprintf("%s disabled in config", dec.DisplayName()),
				Severity:    "info",
			})
			continue
		}
		if !dec.Available() {
			result.Findings = append(result.Findings, Finding{
				Category:    "decoder",
				Description: fmt.Sprintf("%s not found (no log directory)", dec.DisplayName()),
				Severity:    "info",
			})
			continue
		}
		files, err := dec.Discover()
		if err != nil {
			result.Findings = append(result.Findings, Finding{
				Category:    "decoder",
				Description: fmt.Sprintf("%s discovery failed: %v", dec.DisplayName(), err),
				Severity:    "error",
			})
			continue
		}
		available++
		result.Findings = append(result.Findings, Finding{
			Category:    "decoder",
			Description: fmt.Sprintf("%s: %d log file(s)", dec.DisplayName(), len(files)),
			Severity:    "ok",
		})
	}
	if available == 0 {
		result.Findings = append(result.Findings, Finding{
			Category:    "decoder",
			Description: "no AI coding tool logs found",
			Severity:    "warning",
		})
	}
}

func (d *Doctor) checkWatch(result *Result) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := watch.Start(ctx, d.cfg.Debounce())
	if err != nil {
		result.Findings = append(result.Findings, Finding{
			Category:    "watch",
			Description: fmt.Sprintf("filesystem notifications unavailable, watch degrades to manual refresh: %v", err),
			Severity:    "warning",
		})
		return
	}
	w.Close()
	result.Findings = append(result.Findings, Finding{
		Category:    "watch",
		Description: fmt.Sprintf("filesystem notifications available (%d root(s))", len(w.Roots())),
		Severity:    "ok",
	})
}

func (d *Doctor) checkStore(result *Result) {
	dir, err := statedir.CacheDir()
	if err != nil {
		return
	}
	store := cachestore.Open(dir)
	if err := store.Load(); err != nil {
		result.Findings = append(result.Findings, Finding{
			Category:    "cache",
			Description: fmt.Sprintf("cache store unreadable, it will be rebuilt on the next run: %v", err),
			Severity:    "warning",
			Path:        dir,
		})
	}
}

func (d *Doctor) checkIntegrity(result *Result) {
	if dir, err := statedir.CacheDir(); err == nil {
		if err := cachestore.VerifyDir(dir); err != nil {
			result.Findings = append(result.Findings, Finding{
				Category:    "integrity",
				Description: fmt.Sprintf("cache store verification failed: %v", err),
				Severity:    "warning",
				Path:        dir,
			})
		}
	}

	if dir, err := statedir.SnapshotsDir(); err == nil {
		snaps := snapshot.NewCache(dir)
		tags, err := snaps.Tags()
		if err != nil {
			result.Findings = append(result.Findings, Finding{
				Category:    "integrity",
				Description: fmt.Sprintf("cannot list snapshots: %v", err),
				Severity:    "warning",
				Path:        dir,
			})
		}
		for _, tag := range tags {
			if _, _, err := snaps.LoadHot(tag, ""); err != nil {
				result.Findings = append(result.Findings, Finding{
					Category:    "integrity",
					Description: fmt.Sprintf("snapshot %s hot tier: %v", tag, err),
					Severity:    "warning",
				})
			}
			if _, _, err := snaps.LoadCold(tag, ""); err != nil {
				result.Findings = append(result.Findings, Finding{
					Category:    "integrity",
					Description: fmt.Sprintf("snapshot %s cold tier: %v", tag, err),
					Severity:    "warning",
				})
			}
		}
	}

	if path, err := statedir.JournalPath(); err == nil {
		if _, err := journal.Verify(path); err != nil {
			result.Findings = append(result.Findings, Finding{
				Category:    "integrity",
				Description: fmt.Sprintf("journal hash chain broken: %v", err),
				Severity:    "warning",
				Path:        path,
			})
		}
	}
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	root, err := statedir.Root()
	if err != nil {
		return
	}
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".splitrail-tmp-") {
			result.Findings = append(result.Findings, Finding{
				Category:    "tmp",
				Description: fmt.Sprintf("orphan temp file: %s", info.Name()),
				Severity:    "info",
				Path:        path,
			})
		}
		return nil
	})
}
