package main

import (
	"context"
	"os"

	"github.com/artemgetmann/memv2/pkg/critic"
)

// fileKnowledgeProvider implements critic.KnowledgeProvider by reading a
// fixed set of local doc files, regardless of domainKey, grounded on spec
// 4.5's strict-path note that a knowledge provider supplies "domain docs
// excerpts" so the critic itself stays domain-agnostic; which docs apply to
// which domain is the caller's concern, not the critic's.
type fileKnowledgeProvider struct {
	paths []string
}

func newFileKnowledgeProvider(paths []string) critic.KnowledgeProvider {
	if len(paths) == 0 {
		return nil
	}
	return &fileKnowledgeProvider{paths: paths}
}

func (p *fileKnowledgeProvider) Excerpts(ctx context.Context, domainKey string) ([]string, error) {
	excerpts := make([]string, 0, len(p.paths))
	for _, path := range p.paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		excerpts = append(excerpts, string(data))
	}
	return excerpts, nil
}
