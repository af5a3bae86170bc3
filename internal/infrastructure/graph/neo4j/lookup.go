// Package neo4j implements the optional knowledge-graph lookup collaborator.
// The capability is configuration-gated: when no URI is set, the bootstrap
// wires a nil port and chat falls through to hybrid retrieval.
package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	neo4jdriver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const maxLookupTokens = 16

type Lookup struct {
	driver neo4jdriver.DriverWithContext
	logger *slog.Logger
}

func New(uri, user, password string, logger *slog.Logger) (*Lookup, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4jdriver.NewDriverWithContext(uri, neo4jdriver.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Lookup{driver: driver, logger: logger.With("component", "kg")}, nil
}

// Lookup checks each question token against entity names in the graph and
// returns the labels of the first matching entity. An empty answer means no
// entity matched.
func (l *Lookup) Lookup(ctx context.Context, question string) (string, error) {
	tokens := lookupTokens(question)
	if len(tokens) == 0 {
		return "", nil
	}

	session := l.driver.NewSession(ctx, neo4jdriver.SessionConfig{
		AccessMode: neo4jdriver.AccessModeRead,
	})
	defer session.Close(ctx)

	for _, token := range tokens {
		labels, err := l.entityLabels(ctx, session, token)
		if err != nil {
			return "", fmt.Errorf("lookup entity %q: %w", token, err)
		}
		if len(labels) > 0 {
			l.logger.Info("entity matched", "token", token, "labels", len(labels))
			return strings.Join(labels, ", "), nil
		}
	}
	return "", nil
}

func (l *Lookup) entityLabels(ctx context.Context, session neo4jdriver.SessionWithContext, name string) ([]string, error) {
	result, err := session.Run(ctx,
		"MATCH (e:Entity {name: $name}) RETURN e.label AS label",
		map[string]any{"name": name},
	)
	if err != nil {
		return nil, err
	}

	var labels []string
	for result.Next(ctx) {
		if value, ok := result.Record().Get("label"); ok {
			if label, ok := value.(string); ok && label != "" {
				labels = append(labels, label)
			}
		}
	}
	return labels, result.Err()
}

func (l *Lookup) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

func lookupTokens(question string) []string {
	fields := strings.FieldsFunc(question, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) > maxLookupTokens {
		fields = fields[:maxLookupTokens]
	}
	return fields
}
