package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fjod/go_checkout/internal/domain"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	maxTxnAttempts = 3
	txnBackoffBase = 50 * time.Millisecond
)

// TxnRunner is a scoped-transaction capability: the callback either commits
// as a whole or leaves no trace. Repositories called with the callback's
// context participate in the same transaction.
type TxnRunner interface {
	WithinTxn(ctx context.Context, fn func(ctx context.Context) error) error
}

// MongoTxnRunner runs callbacks inside a MongoDB session transaction with
// snapshot reads and majority writes. Transient conflicts (two checkouts
// racing on the same stock document) are retried with backoff up to
// maxTxnAttempts before surfacing domain.ErrTransactionAborted; business
// errors abort immediately and propagate unchanged.
type MongoTxnRunner struct {
	client *mongo.Client
}

func NewMongoTxnRunner(client *mongo.Client) *MongoTxnRunner {
	return &MongoTxnRunner{client: client}
}

func (r *MongoTxnRunner) WithinTxn(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if attempt > 0 {
			backoff := txnBackoffBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			log.Printf("retrying transaction, attempt %d after %v: %v", attempt+1, backoff, lastErr)
		}

		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransactionAborted, lastErr)
}

func (r *MongoTxnRunner) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(txnOpts); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(sc); err != nil {
			// Abort failure is irrelevant: the server times the
			// transaction out and discards it either way.
			_ = session.AbortTransaction(sc)
			return err
		}
		return session.CommitTransaction(sc)
	})
}

// IsTransient reports whether an error is a storage-level conflict that is
// expected to succeed on retry, as opposed to a business-rule rejection.
func IsTransient(err error) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel("TransientTransactionError") ||
			serverErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}
