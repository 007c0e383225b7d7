package preflight

import (
	"context"
	"fmt"

	"eventscout/internal/config"
	"eventscout/internal/store"
)

// CheckDatabase opens the configured store, which applies pending
// migrations, and reports the schema version and row count.
func CheckDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Database"

	st, err := store.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed (%v)", err)}
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("ping failed (%v)", err)}
	}
	version, err := st.SchemaVersion(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("schema check failed (%v)", err)}
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("stats failed (%v)", err)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s schema %s, %d events", st.Driver(), version, stats.Total),
	}
}
