package toolregistry

import lru "github.com/hashicorp/golang-lru/v2"

// Classifier memoizes a tool's boolean classification (currently: whether
// the registry tags it "Health and Wellness", §4.5 step 6) for the
// process lifetime, so a recurring poll of the same tool doesn't repeat
// the registry round trip every tick. Invalidate clears one tool's
// cached classification on an explicit admin signal, since tags can
// change without this process restarting.
type Classifier struct {
	tags *lru.Cache[string, bool]
}

// NewClassifier builds a Classifier with an LRU cache capped at size
// entries.
func NewClassifier(size int) (*Classifier, error) {
	cache, err := lru.New[string, bool](size)
	if err != nil {
		return nil, err
	}
	return &Classifier{tags: cache}, nil
}

// Lookup returns a tool's cached classification, if present.
func (c *Classifier) Lookup(tool string) (bool, bool) {
	if c == nil || c.tags == nil {
		return false, false
	}
	return c.tags.Get(tool)
}

// Store records tool's classification.
func (c *Classifier) Store(tool string, classified bool) {
	if c == nil || c.tags == nil {
		return
	}
	c.tags.Add(tool, classified)
}

// Invalidate clears tool's cached classification, forcing the next
// lookup to round-trip the registry again.
func (c *Classifier) Invalidate(tool string) {
	if c == nil || c.tags == nil {
		return
	}
	c.tags.Remove(tool)
}
