package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-harvest/internal/store"
)

// initStore opens and migrates the configured store. It returns a nil
// Store when the driver is "none".
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
