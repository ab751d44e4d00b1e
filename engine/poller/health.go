package poller

import (
	"context"
	"strings"

	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
)

const healthWellnessTag = "health and wellness"

// resolveAggregationMode implements §4.5 step 6: an explicit
// trigger_config.aggregation_mode wins; otherwise tools tagged "Health and
// Wellness" by the tool registry default to latest, everything else to
// per_item. The tag lookup is memoized for the process lifetime via the
// Poller's LRU cache so a recurring poll of the same tool doesn't repeat
// the registry round trip every tick.
func resolveAggregationMode(ctx context.Context, p *Poller, cfg pollConfig, log logger.Logger) string {
	if cfg.aggregationMode != "" {
		return cfg.aggregationMode
	}
	if p.isHealthTool(ctx, cfg.sourceTool, log) {
		return "latest"
	}
	return "per_item"
}

func (p *Poller) isHealthTool(ctx context.Context, tool string, log logger.Logger) bool {
	if v, ok := p.classifier.Lookup(tool); ok {
		return v
	}
	descriptor, err := p.registry.GetByName(ctx, tool)
	if err != nil {
		log.Debug("poller: tool tag lookup failed, defaulting to per_item", "tool", tool, "error", err)
		return false
	}
	tagged := false
	for _, tag := range descriptor.Tags {
		if strings.EqualFold(tag, healthWellnessTag) {
			tagged = true
			break
		}
	}
	p.classifier.Store(tool, tagged)
	return tagged
}
