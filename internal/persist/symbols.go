package persist

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ndrandal/tickvis/internal/symbolsearch"
)

// UpsertSymbol inserts or replaces one symbol's metadata, keyed by
// normalized_id.
func (s *Store) UpsertSymbol(ctx context.Context, sym symbolsearch.Symbol) error {
	filter := bson.D{{Key: "normalized_id", Value: sym.NormalizedID}}
	update := bson.D{{Key: "$set", Value: sym}}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := s.db.Collection("symbols").UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("upsert symbol %s: %w", sym.NormalizedID, err)
	}
	return nil
}

// ListSymbols loads every known symbol, in no particular order, for
// internal/symbolsearch to build its in-memory index from.
func (s *Store) ListSymbols(ctx context.Context) ([]symbolsearch.Symbol, error) {
	cur, err := s.db.Collection("symbols").Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer cur.Close(ctx)

	var out []symbolsearch.Symbol
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	return out, nil
}
