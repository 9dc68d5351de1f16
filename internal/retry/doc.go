// Package retry provides retry logic with exponential backoff for transient
// failures of the registry database and of the metadata git remote.
//
//	executor := retry.Default(retry.GitErrorClassifier{})
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return repo.Push(ctx)
//	})
//
// Classifiers decide which errors are worth another attempt:
// PostgreSQLErrorClassifier for connecting, SerializationClassifier for
// serializable store transactions, GitErrorClassifier for push and fetch.
package retry
