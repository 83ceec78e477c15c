// Package persist maps pipeline artifacts to reviewer documents and back.
//
// Layout under users/{uid}/folders/{folder}/reviewers/{reviewerId}:
//
//	acronym:   {id, title, createdAt}
//	           content/{groupId} {id, title, keyPhrase}
//	           content/{groupId}/contents/{i} {letter, word}
//	terms:     {id, title, createdAt}
//	           questions/{qid} {id, term}
//	           questions/{qid}/definitions/{i} {text, type}
//	summarize, explain:
//	           {id, title, createdAt, reviewers: [artifact]}
//
// Writes are lenient: malformed groups, questions and options are skipped
// instead of failing the write.
package persist

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/yangwenmai/reviewer/internal/model"
	"github.com/yangwenmai/reviewer/internal/store"
)

// DocumentStore is the subset of the store used by the mapper.
type DocumentStore interface {
	Get(ctx context.Context, ref store.DocRef) (*store.Snapshot, error)
	List(ctx context.Context, col store.CollectionRef) ([]*store.Snapshot, error)
	Batch() *store.Batch
}

// Mapper writes and reads reviewer records.
type Mapper struct {
	store DocumentStore
	now   func() time.Time
	newID func() string
}

// New creates a Mapper over s.
func New(s DocumentStore) *Mapper {
	return &Mapper{store: s, now: time.Now, newID: uuid.NewString}
}

// FolderRef is the collection holding a user's reviewers of one feature.
func FolderRef(userID string, f model.FeatureType) store.CollectionRef {
	return store.Collection("users").Doc(userID).
		Collection("folders").Doc(f.Folder()).
		Collection("reviewers")
}

// ReviewerRef is the top-level document of one reviewer.
func ReviewerRef(userID string, f model.FeatureType, id model.ReviewerID) store.DocRef {
	return FolderRef(userID, f).Doc(id.String())
}

// Write stores art as reviewer id. All documents commit in one batch.
func (m *Mapper) Write(ctx context.Context, userID string, f model.FeatureType, id model.ReviewerID, art model.Artifact) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %w: %q", model.ErrPersistence, model.ErrUnknownFeature, f)
	}
	ref := ReviewerRef(userID, f, id)
	top := map[string]any{
		"id":        id.String(),
		"title":     titleOf(art),
		"createdAt": m.now().UTC(),
	}

	batch := m.store.Batch()
	switch f {
	case model.FeatureAcronym:
		batch.Set(ref, top)
		m.addAcronymGroups(batch, ref, art)
	case model.FeatureTerms:
		batch.Set(ref, top)
		m.addQuestions(batch, ref, art)
	default:
		top["reviewers"] = []any{map[string]any(art)}
		batch.Set(ref, top)
	}

	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrPersistence, ref, err)
	}
	return nil
}

func (m *Mapper) addAcronymGroups(batch *store.Batch, ref store.DocRef, art model.Artifact) {
	used := map[string]bool{}
	for _, item := range cast.ToSlice(art["acronymGroups"]) {
		g := cast.ToStringMap(item)
		contents := cast.ToSlice(g["contents"])
		if len(contents) == 0 {
			continue
		}
		gid := m.docID(g["id"], used)
		groupRef := ref.Collection("content").Doc(gid)
		batch.Set(groupRef, map[string]any{
			"id":        gid,
			"title":     cast.ToString(g["title"]),
			"keyPhrase": cast.ToString(g["keyPhrase"]),
		})

		n := 0
		for _, c := range contents {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			batch.Set(groupRef.Collection("contents").Doc(strconv.Itoa(n)), map[string]any{
				"letter": cast.ToString(cm["letter"]),
				"word":   cast.ToString(cm["word"]),
			})
			n++
		}
	}
}

func (m *Mapper) addQuestions(batch *store.Batch, ref store.DocRef, art model.Artifact) {
	used := map[string]bool{}
	for _, item := range cast.ToSlice(art["questions"]) {
		q := cast.ToStringMap(item)
		term := strings.TrimSpace(cast.ToString(q["term"]))
		options, ok := q["definition"].([]any)
		if term == "" || !ok {
			continue
		}

		var defs []map[string]any
		for _, o := range options {
			om := cast.ToStringMap(o)
			text := strings.TrimSpace(cast.ToString(om["text"]))
			typ := cast.ToString(om["type"])
			if text == "" || typ == "" {
				continue
			}
			defs = append(defs, map[string]any{"text": text, "type": typ})
		}
		if len(defs) == 0 {
			continue
		}

		qid := m.docID(q["id"], used)
		qRef := ref.Collection("questions").Doc(qid)
		batch.Set(qRef, map[string]any{"id": qid, "term": term})
		for i, d := range defs {
			batch.Set(qRef.Collection("definitions").Doc(strconv.Itoa(i)), d)
		}
	}
}

// docID turns a generated id into a safe, unique path segment, or makes one up.
func (m *Mapper) docID(v any, used map[string]bool) string {
	id := strings.TrimSpace(strings.ReplaceAll(cast.ToString(v), "/", "-"))
	if id == "" || used[id] {
		id = m.newID()
	}
	used[id] = true
	return id
}

func titleOf(art model.Artifact) string {
	if t := strings.TrimSpace(cast.ToString(art["title"])); t != "" {
		return t
	}
	return model.UntitledTitle
}

// Read rebuilds the artifact stored as reviewer id.
func (m *Mapper) Read(ctx context.Context, userID string, f model.FeatureType, id model.ReviewerID) (model.Artifact, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownFeature, f)
	}
	ref := ReviewerRef(userID, f, id)
	snap, err := m.store.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if !snap.Exists() {
		return nil, fmt.Errorf("%w: reviewer %s", model.ErrNotFound, id)
	}

	switch f {
	case model.FeatureAcronym:
		return m.readAcronym(ctx, ref, snap)
	case model.FeatureTerms:
		return m.readTerms(ctx, ref, snap)
	}
	reviewers := cast.ToSlice(snap.Data["reviewers"])
	if len(reviewers) == 0 {
		return model.Artifact{"title": snap.Data["title"]}, nil
	}
	return model.Artifact(cast.ToStringMap(reviewers[0])), nil
}

func (m *Mapper) readAcronym(ctx context.Context, ref store.DocRef, top *store.Snapshot) (model.Artifact, error) {
	groups, err := m.store.List(ctx, ref.Collection("content"))
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	out := make([]any, 0, len(groups))
	for _, g := range groups {
		items, err := m.store.List(ctx, g.Ref.Collection("contents"))
		if err != nil {
			return nil, fmt.Errorf("list contents of %s: %w", g.Ref.ID(), err)
		}
		contents := make([]any, 0, len(items))
		for _, it := range items {
			contents = append(contents, map[string]any{
				"letter": cast.ToString(it.Data["letter"]),
				"word":   cast.ToString(it.Data["word"]),
			})
		}
		out = append(out, map[string]any{
			"id":        cast.ToString(g.Data["id"]),
			"title":     cast.ToString(g.Data["title"]),
			"keyPhrase": cast.ToString(g.Data["keyPhrase"]),
			"contents":  contents,
		})
	}
	return model.Artifact{"title": cast.ToString(top.Data["title"]), "acronymGroups": out}, nil
}

func (m *Mapper) readTerms(ctx context.Context, ref store.DocRef, top *store.Snapshot) (model.Artifact, error) {
	questions, err := m.store.List(ctx, ref.Collection("questions"))
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]any, 0, len(questions))
	for _, q := range questions {
		defs, err := m.store.List(ctx, q.Ref.Collection("definitions"))
		if err != nil {
			return nil, fmt.Errorf("list definitions of %s: %w", q.Ref.ID(), err)
		}
		options := make([]any, 0, len(defs))
		for _, d := range defs {
			options = append(options, map[string]any{
				"text": cast.ToString(d.Data["text"]),
				"type": cast.ToString(d.Data["type"]),
			})
		}
		out = append(out, map[string]any{
			"id":         cast.ToString(q.Data["id"]),
			"term":       cast.ToString(q.Data["term"]),
			"definition": options,
		})
	}
	return model.Artifact{"title": cast.ToString(top.Data["title"]), "questions": out}, nil
}

// List returns the user's reviewers of feature f in creation order.
func (m *Mapper) List(ctx context.Context, userID string, f model.FeatureType) ([]model.ReviewerSummary, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownFeature, f)
	}
	snaps, err := m.store.List(ctx, FolderRef(userID, f))
	if err != nil {
		return nil, fmt.Errorf("list reviewers: %w", err)
	}
	out := make([]model.ReviewerSummary, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, model.ReviewerSummary{
			ID:        cast.ToString(s.Data["id"]),
			Title:     cast.ToString(s.Data["title"]),
			CreatedAt: cast.ToTime(s.Data["createdAt"]),
		})
	}
	return out, nil
}
