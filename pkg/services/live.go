package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/retry"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/schemaconfig"
)

// liveRetryConfig keeps retries well inside a single live timeout.
func liveRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:       2,
		InitialDelay:     50 * time.Millisecond,
		MaxDelay:         500 * time.Millisecond,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 2,
	}
}

// fetchLive calls the introspector under the live timeout and rate limit.
// Deadline expiry is reported as apperrors.ErrLiveTimeout.
func (r *resolver) fetchLive(ctx context.Context, key string) ([]models.LiveColumn, error) {
	if r.introspector == nil {
		return nil, apperrors.ErrNoIntrospector
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.LiveTimeout)
	defer cancel()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for live query slot: %w", apperrors.ErrLiveTimeout, err)
		}
	}

	start := time.Now()
	var cols []models.LiveColumn
	err := retry.DoIfRetryable(ctx, liveRetryConfig(), func() error {
		var ferr error
		cols, ferr = r.introspector.FetchLiveSchema(ctx, key)
		return ferr
	})
	liveFetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", apperrors.ErrLiveTimeout, r.cfg.LiveTimeout, err)
		}
		return nil, err
	}
	return cols, nil
}

// liveColumnsForWhitelisted returns physical columns to union with the
// configuration, or nil when no live database is configured or the lookup failed.
func (r *resolver) liveColumnsForWhitelisted(ctx context.Context, key string) []models.LiveColumn {
	if r.introspector == nil {
		return nil
	}
	cols, err := r.fetchLive(ctx, key)
	if err != nil {
		r.logger.Warn("Live columns unavailable for whitelisted table; using configuration only",
			zap.String("table", key),
			logging.ErrorField(err))
		return nil
	}
	return cols
}

// liveDescriptor builds a descriptor from the live database, layering any
// detail file and global patterns on top of the physical columns.
func (r *resolver) liveDescriptor(ctx context.Context, cs *schemaconfig.ConfigSet, key string) (*models.TableDescriptor, error) {
	cols, err := r.fetchLive(ctx, key)
	if err != nil {
		if errors.Is(err, datasource.ErrTableNotFound) {
			r.logger.Info("Table not found in live database", zap.String("table", key))
			return nil, &apperrors.SchemaNotFoundError{Table: key}
		}
		r.logger.Warn("Live introspection failed",
			zap.String("table", key),
			logging.ErrorField(err))
		return nil, &apperrors.SchemaNotFoundError{Table: key, Err: err}
	}

	desc := cs.Descriptor(key, cols)
	if !desc.Whitelisted && cs.Detail(key) == nil {
		desc.DisplayName = displayNameFor(key)
	}
	r.logger.Debug("Resolved table from live database",
		zap.String("table", key),
		zap.String("dialect", r.introspector.Dialect().String()),
		zap.Int("columns", len(desc.Columns)))
	return desc, nil
}

// displayNameFor turns a physical table name into a readable singular name:
// "SALES.CUSTOMER_ORDERS" becomes "Customer Order".
func displayNameFor(table string) string {
	name := table
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	if len(words) == 0 {
		return table
	}
	words[len(words)-1] = inflection.Singular(words[len(words)-1])
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
