package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
)

// Classifier produces a positive-class probability for an ordered feature vector.
type Classifier interface {
	PredictProba(x []float64) (float64, error)
}

// Artifact is a trained classifier plus the ordered feature names it expects.
// It is immutable after loading and safe for concurrent use.
type Artifact struct {
	Classifier   Classifier
	FeatureNames []string
}

// CheckSchema verifies that every feature the classifier declares is produced
// by the extractor.
func (a *Artifact) CheckSchema(available []string) error {
	have := make(map[string]struct{}, len(available))
	for _, name := range available {
		have[name] = struct{}{}
	}
	for _, name := range a.FeatureNames {
		if _, ok := have[name]; !ok {
			return &domain.MissingFeatureError{Name: name}
		}
	}
	return nil
}

// artifactFile is the on-disk format: the booster's JSON tree dump
// (Booster.dump_model(dump_format="json")) plus feature order and base score.
type artifactFile struct {
	Features  []string    `json:"features"`
	BaseScore *float64    `json:"base_score"`
	Trees     []*treeNode `json:"trees"`
}

type treeNode struct {
	NodeID         int         `json:"nodeid"`
	Split          string      `json:"split"`
	SplitCondition float64     `json:"split_condition"`
	Yes            int         `json:"yes"`
	No             int         `json:"no"`
	Missing        *int        `json:"missing"`
	Children       []*treeNode `json:"children"`
	Leaf           *float64    `json:"leaf"`
}

// LoadArtifact reads a JSON tree-ensemble artifact from path.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes and compiles a JSON tree-ensemble artifact.
func ParseArtifact(data []byte) (*Artifact, error) {
	var f artifactFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if len(f.Features) == 0 {
		return nil, errors.New("model artifact declares no features")
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("model artifact contains no trees")
	}

	baseScore := 0.5
	if f.BaseScore != nil {
		baseScore = *f.BaseScore
	}
	if baseScore <= 0 || baseScore >= 1 {
		return nil, fmt.Errorf("model artifact base_score %v outside (0,1)", baseScore)
	}

	index := make(map[string]int, len(f.Features))
	for i, name := range f.Features {
		index[name] = i
	}

	trees := make([]compiledTree, 0, len(f.Trees))
	for i, root := range f.Trees {
		tree, err := compileTree(root, index)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees = append(trees, tree)
	}

	return &Artifact{
		Classifier: &treeEnsemble{
			baseMargin: math.Log(baseScore / (1 - baseScore)),
			trees:      trees,
			width:      len(f.Features),
		},
		FeatureNames: f.Features,
	}, nil
}

// LoadOrFallback loads the artifact at path. Any failure is logged and yields
// nil, which puts the estimator in fallback mode.
func LoadOrFallback(path string, logger *slog.Logger) *Artifact {
	artifact, err := LoadArtifact(path)
	switch {
	case err == nil:
		logger.Info("flood model loaded", "path", path, "features", artifact.FeatureNames)
		return artifact
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("flood model not found, using fallback rule", "path", path)
	default:
		logger.Error("flood model failed to load, using fallback rule", "path", path, "error", err)
	}
	return nil
}

// treeEnsemble evaluates a binary:logistic gradient-boosted tree ensemble.
type treeEnsemble struct {
	baseMargin float64
	trees      []compiledTree
	width      int
}

func (e *treeEnsemble) PredictProba(x []float64) (float64, error) {
	if len(x) != e.width {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", len(x), e.width)
	}
	margin := e.baseMargin
	for _, t := range e.trees {
		margin += t.eval(x)
	}
	return 1 / (1 + math.Exp(-margin)), nil
}

// compiledTree is a flattened tree indexed by node id.
type compiledTree struct {
	nodes map[int]compiledNode
	root  int
}

type compiledNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	yes       int
	no        int
	missing   int
}

func (t compiledTree) eval(x []float64) float64 {
	n := t.nodes[t.root]
	for !n.leaf {
		v := x[n.feature]
		switch {
		case math.IsNaN(v):
			n = t.nodes[n.missing]
		case v < n.threshold:
			n = t.nodes[n.yes]
		default:
			n = t.nodes[n.no]
		}
	}
	return n.value
}

func compileTree(root *treeNode, index map[string]int) (compiledTree, error) {
	if root == nil {
		return compiledTree{}, errors.New("empty tree")
	}
	t := compiledTree{nodes: make(map[int]compiledNode), root: root.NodeID}
	if err := t.add(root, index); err != nil {
		return compiledTree{}, err
	}
	for id, n := range t.nodes {
		if n.leaf {
			continue
		}
		for _, child := range []int{n.yes, n.no, n.missing} {
			if _, ok := t.nodes[child]; !ok {
				return compiledTree{}, fmt.Errorf("node %d references unknown child %d", id, child)
			}
		}
	}
	if err := t.checkAcyclic(); err != nil {
		return compiledTree{}, err
	}
	return t, nil
}

// checkAcyclic rejects trees where a branch leads back to one of its ancestors,
// which would make eval loop forever.
func (t compiledTree) checkAcyclic() error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[int]int, len(t.nodes))

	var visit func(id int) error
	visit = func(id int) error {
		switch state[id] {
		case onPath:
			return fmt.Errorf("node %d is reachable from itself", id)
		case done:
			return nil
		}
		n := t.nodes[id]
		if n.leaf {
			state[id] = done
			return nil
		}
		state[id] = onPath
		for _, child := range []int{n.yes, n.no, n.missing} {
			if err := visit(child); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	return visit(t.root)
}

func (t *compiledTree) add(n *treeNode, index map[string]int) error {
	if _, dup := t.nodes[n.NodeID]; dup {
		return fmt.Errorf("duplicate node id %d", n.NodeID)
	}
	if n.Leaf != nil {
		t.nodes[n.NodeID] = compiledNode{leaf: true, value: *n.Leaf}
		return nil
	}

	feature, err := resolveFeature(n.Split, index)
	if err != nil {
		return fmt.Errorf("node %d: %w", n.NodeID, err)
	}
	missing := n.Yes
	if n.Missing != nil {
		missing = *n.Missing
	}
	t.nodes[n.NodeID] = compiledNode{
		feature:   feature,
		threshold: n.SplitCondition,
		yes:       n.Yes,
		no:        n.No,
		missing:   missing,
	}
	for _, child := range n.Children {
		if err := t.add(child, index); err != nil {
			return err
		}
	}
	return nil
}

// resolveFeature maps a split name to a column. Boosters trained without
// feature names dump splits as f0, f1, ...
func resolveFeature(split string, index map[string]int) (int, error) {
	if i, ok := index[split]; ok {
		return i, nil
	}
	if rest, ok := strings.CutPrefix(split, "f"); ok {
		if i, err := strconv.Atoi(rest); err == nil && i >= 0 && i < len(index) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("split on undeclared feature %q", split)
}
