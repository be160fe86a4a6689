// Package sigma evaluates Sigma detection rules against reported exec
// events. Matching is stateless and per-event; matches are surfaced to
// the caller, never stored.
package sigma

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bradleyjkemp/sigma-go"
	"github.com/bradleyjkemp/sigma-go/evaluator"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Match describes one rule that fired for an event.
type Match struct {
	RuleID     string
	RuleTitle  string
	Severity   string
	Conditions []string
}

// Detector holds the compiled rule set and keeps it current as rule
// files in the watched directory change.
type Detector struct {
	rulesDir string
	watcher  *fsnotify.Watcher

	mu         sync.RWMutex
	evaluators map[string]*evaluator.RuleEvaluator
}

// fieldConfig maps the rule field names commonly used by process_creation
// rules onto the fields the monitor can populate.
func fieldConfig() sigma.Config {
	return sigma.Config{
		Title: "startmon exec events",
		FieldMappings: map[string]sigma.FieldMapping{
			"CommandLine": {TargetNames: []string{"CommandLine"}},
			"Image":       {TargetNames: []string{"Image"}},
			"ProcessId":   {TargetNames: []string{"ProcessId"}},
		},
	}
}

// NewDetector loads every rule in rulesDir and starts watching the
// directory so edits take effect without a restart.
func NewDetector(rulesDir string) (*Detector, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create rule watcher: %w", err)
	}
	d := &Detector{
		rulesDir:   rulesDir,
		watcher:    watcher,
		evaluators: make(map[string]*evaluator.RuleEvaluator),
	}
	if err := d.loadRules(); err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(rulesDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", rulesDir, err)
	}
	go d.watchChanges()
	return d, nil
}

// loadRules replaces the rule set with the current directory contents.
// Individual unparsable files are skipped with a warning so one bad rule
// cannot disable detection.
func (d *Detector) loadRules() error {
	entries, err := os.ReadDir(d.rulesDir)
	if err != nil {
		return fmt.Errorf("read rules directory: %w", err)
	}

	evaluators := make(map[string]*evaluator.RuleEvaluator)
	for _, entry := range entries {
		if entry.IsDir() || !isRuleFile(entry.Name()) {
			continue
		}
		path := filepath.Join(d.rulesDir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("skipping rule file %s: %v", path, err)
			continue
		}
		if sigma.InferFileType(content) != sigma.RuleFile {
			log.Warnf("not a Sigma rule, skipping: %s", path)
			continue
		}
		rule, err := sigma.ParseRule(content)
		if err != nil {
			log.Warnf("failed to parse rule %s: %v", path, err)
			continue
		}
		evaluators[rule.ID] = evaluator.ForRule(rule,
			evaluator.WithConfig(fieldConfig()),
			evaluator.WithPlaceholderExpander(func(ctx context.Context, name string) ([]string, error) {
				return nil, nil
			}))
		log.Debugf("loaded rule %s (%s)", rule.Title, rule.ID)
	}

	d.mu.Lock()
	d.evaluators = evaluators
	d.mu.Unlock()
	log.Infof("loaded %d Sigma rules from %s", len(evaluators), d.rulesDir)
	return nil
}

func isRuleFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yml" || ext == ".yaml"
}

func (d *Detector) watchChanges() {
	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !isRuleFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				log.Infof("rule change detected: %s", event.Name)
				if err := d.loadRules(); err != nil {
					log.Errorf("reloading rules: %v", err)
				}
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("rule watcher: %v", err)
		}
	}
}

// CheckExec evaluates every loaded rule against one exec event and
// returns the rules that matched.
func (d *Detector) CheckExec(ctx context.Context, pid uint32, cmdline string) []Match {
	event := map[string]interface{}{
		"ProcessId":   int(pid),
		"CommandLine": cmdline,
		"Image":       firstField(cmdline),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []Match
	for _, ev := range d.evaluators {
		result, err := ev.Matches(ctx, event)
		if err != nil {
			log.Warnf("evaluating rule %s: %v", ev.Rule.ID, err)
			continue
		}
		if !result.Match {
			continue
		}
		var conditions []string
		for name, hit := range result.SearchResults {
			if hit {
				conditions = append(conditions, name)
			}
		}
		matches = append(matches, Match{
			RuleID:     ev.Rule.ID,
			RuleTitle:  ev.Rule.Title,
			Severity:   ev.Rule.Level,
			Conditions: conditions,
		})
	}
	return matches
}

func firstField(cmdline string) string {
	if i := strings.IndexByte(cmdline, ' '); i >= 0 {
		return cmdline[:i]
	}
	return cmdline
}

// Close stops the directory watcher.
func (d *Detector) Close() error {
	return d.watcher.Close()
}
