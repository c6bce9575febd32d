// Package model defines the typed stream of values flowing through the
// ingestion pipeline: graph-bound entities, relationships, call-site
// references, and the dispatcher-side bookkeeping records.
//
// Entities are identified by a human-readable slug. The persistent UUID is
// derived deterministically from the slug (UUIDv5 over the OID namespace),
// so the same slug always resolves to the same UUID.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Node type tags used across the pipeline. Parser-declared CodeEntity types
// (FunctionDefinition, ClassDefinition, ...) are carried in CodeEntity.Type
// and are not enumerated here.
const (
	TypeRepository         = "Repository"
	TypeSourceFile         = "SourceFile"
	TypeTextChunk          = "TextChunk"
	TypePendingLink        = "PendingLink"
	TypeIngestionHeartbeat = "IngestionHeartbeat"
	TypeResolutionCache    = "ResolutionCache"
)

// Relationship labels. Every edge's type is drawn from this closed set.
const (
	RelContainsFile        = "CONTAINS_FILE"
	RelContainsChunk       = "CONTAINS_CHUNK"
	RelContainsEntity      = "CONTAINS_ENTITY"
	RelExtends             = "EXTENDS"
	RelImplements          = "IMPLEMENTS"
	RelImports             = "IMPORTS"
	RelHasDirective        = "HAS_DIRECTIVE"
	RelReferencesNamespace = "REFERENCES_NAMESPACE"
	RelCalls               = "CALLS"
)

// LinkStatus is the lifecycle state of a PendingLink. Transitions are
// monotone: PENDING_RESOLUTION -> READY_FOR_HEURISTICS ->
// {READY_FOR_LLM -> AWAITING_TARGET, AWAITING_TARGET, UNRESOLVABLE}.
type LinkStatus string

const (
	StatusPendingResolution  LinkStatus = "PENDING_RESOLUTION"
	StatusReadyForHeuristics LinkStatus = "READY_FOR_HEURISTICS"
	StatusReadyForLLM        LinkStatus = "READY_FOR_LLM"
	StatusAwaitingTarget     LinkStatus = "AWAITING_TARGET"
	StatusUnresolvable       LinkStatus = "UNRESOLVABLE"
)

// Heartbeat statuses.
const (
	HeartbeatActive    = "active"
	HeartbeatEnhancing = "enhancing"
	HeartbeatFailed    = "failed"
)

// slugNamespace anchors the slug -> UUID derivation. Matches the OID
// namespace so identical slugs map to identical UUIDs across runs.
var slugNamespace = uuid.NameSpaceOID

// UUIDForSlug derives the persistent UUID for a slug. Pure function: the
// round-trip law UUIDForSlug(s) == UUIDForSlug(s) holds by construction.
func UUIDForSlug(slug string) uuid.UUID {
	return uuid.NewSHA1(slugNamespace, []byte(slug))
}

// Repository is the root of a scanned directory or repository.
type Repository struct {
	SlugID    string // caller-supplied id, e.g. "github.com/owner/name" or "local/project"
	Path      string // absolute path on disk
	CreatedAt time.Time
}

// SourceFile is one discovered file, owned by exactly one Repository.
type SourceFile struct {
	SlugID     string // "<repo_slug>:<relative_path>"
	RepoSlug   string
	AbsPath    string
	RelPath    string
	Language   string // file type key, e.g. "cpp", "python", "dockerfile"
	IngestedAt time.Time
}

// SourceFileSlug builds the canonical slug for a file within a repository.
func SourceFileSlug(repoSlug, relPath string) string {
	return repoSlug + ":" + filepathToSlash(relPath)
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// TextChunk is a contiguous slice of a file's content with 1-based
// inclusive line bounds. Chunks of a file never overlap.
type TextChunk struct {
	SlugID    string // "<file_slug>|<index>@<start>-<end>" (fallback chunk: "<file_slug>|0")
	FileSlug  string
	StartLine int
	EndLine   int
	Content   string
}

// CodeEntity is a parser-emitted code element. While in flight its SlugID is
// the temporary "<FQN>@<0-indexed-start-line>" form; the adapter rekeys it
// to the file-scoped persistent form before writing.
type CodeEntity struct {
	SlugID   string
	Type     string // parser-declared closed set: FunctionDefinition, ClassDefinition, ...
	FileSlug string
	Snippet  string
}

// TempEntitySlug builds the in-flight slug for an entity.
func TempEntitySlug(fqn string, startLine0 int) string {
	return fmt.Sprintf("%s@%d", fqn, startLine0)
}

// SplitTempEntitySlug splits "<FQN>@<line>" back into its parts. Returns
// ok=false when the slug does not carry a line suffix.
func SplitTempEntitySlug(slug string) (fqn string, line0 int, ok bool) {
	idx := strings.LastIndex(slug, "@")
	if idx <= 0 {
		return "", 0, false
	}
	var n int
	if _, err := fmt.Sscanf(slug[idx+1:], "%d", &n); err != nil {
		return "", 0, false
	}
	return slug[:idx], n, true
}

// PersistentEntitySlug is the canonical slug an entity is rekeyed to at
// persistence time: scoped under its source file so that the same FQN in
// two files never collides. It carries no version component.
func PersistentEntitySlug(fileSlug, tempSlug string) string {
	return fileSlug + "|" + tempSlug
}

// Relationship is a directed edge between two slugs.
type Relationship struct {
	SourceID   string
	TargetID   string
	Type       string
	Properties map[string]any
}

// CallSiteReference records one call expression discovered inside a
// function body. CSRs are intermediate artifacts consumed by the
// enrichment engine; they are never persisted as graph nodes.
type CallSiteReference struct {
	CallerTempID  string // temporary slug of the calling entity
	CalledExpr    string // normalized callee: "operator+", "Ns::func", ...
	Line0         int    // 0-indexed source line of the call
	FileSlug      string
	RawArgs       string
	ArgumentCount int
}

// PendingLink is the graph node representing an unresolved reference.
type PendingLink struct {
	SlugID     string
	RepoSlug   string
	Status     LinkStatus
	Reference  CallSiteReference
	Candidates []string
	AwaitsFQN  string
	Reason     string
}

// IngestionHeartbeat tracks per-repository ingestion activity.
type IngestionHeartbeat struct {
	RepoSlug     string
	LastActivity time.Time
	Status       string
	Error        string
}

// HeartbeatSlug is the slug of a repository's heartbeat node.
func HeartbeatSlug(repoSlug string) string {
	return "heartbeat://" + repoSlug
}

// SliceLines is the parser's first output: the sorted-later list of
// 0-indexed lines at which new chunks begin. May be empty for
// whitespace-only content.
type SliceLines []int

// ParserItem is the tagged union of values a parser may emit after its
// slice-line list: CodeEntity, Relationship, or CallSiteReference.
type ParserItem interface{ parserItem() }

func (SliceLines) parserItem()        {}
func (CodeEntity) parserItem()        {}
func (Relationship) parserItem()      {}
func (CallSiteReference) parserItem() {}

// Event is the tagged union carried on the orchestrator's output channel.
type Event interface{ event() }

// RepositoryEvent is yielded exactly once, first.
type RepositoryEvent struct{ Repository Repository }

// SourceFileEvent carries the file plus its discovery context. All file
// events are yielded in discovery order before any parser output.
type SourceFileEvent struct {
	File    SourceFile
	Context map[string]string
}

// FileSliceEvent carries a file's slice-line list (exactly one per parsed
// file) plus the content the chunker slices.
type FileSliceEvent struct {
	FileSlug string
	Slices   SliceLines
	Content  string
}

// ParserItemEvent carries one parser output item, tagged with its file.
type ParserItemEvent struct {
	FileSlug string
	Item     ParserItem
}

// FileDoneEvent marks the end of a single file's parser stream.
type FileDoneEvent struct{ FileSlug string }

func (RepositoryEvent) event() {}
func (SourceFileEvent) event() {}
func (FileSliceEvent) event()  {}
func (ParserItemEvent) event() {}
func (FileDoneEvent) event()   {}
