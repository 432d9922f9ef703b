package addons

import (
	"errors"
	"fmt"

	"github.com/bnema/vpkctl/internal/game"
)

var (
	ErrNameExists      = errors.New("name already exists")
	ErrInvalidName     = errors.New("invalid name")
	ErrMoveIntoSelf    = errors.New("cannot move a node into itself or its descendants")
	ErrDifferentRoot   = errors.New("nodes belong to different roots")
	ErrMoveDenied      = errors.New("move denied while a task is running")
	ErrInvalidGamePath = game.ErrInvalidGamePath
	ErrNodeInvalid     = errors.New("node has been destroyed")
	ErrFileExists      = errors.New("target file already exists")
	ErrNodeNotFound    = errors.New("node not found")
	ErrNotGroup        = errors.New("node is not a group")
	ErrUnknownKind     = errors.New("unknown record kind")
	ErrNoPublishedFile = errors.New("no published file id")
	ErrInvalidTag      = errors.New("tag must not be empty")
)

// MoveDeniedError reports the node whose running task blocks a move or rename
type MoveDeniedError struct {
	Node Node
}

func (e *MoveDeniedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMoveDenied, e.Node.FullName())
}

func (e *MoveDeniedError) Unwrap() error {
	return ErrMoveDenied
}

// FileMoveError wraps a failed rename of a backing file
type FileMoveError struct {
	Source string
	Target string
	Err    error
}

func (e *FileMoveError) Error() string {
	return fmt.Sprintf("failed to move %s to %s: %v", e.Source, e.Target, e.Err)
}

func (e *FileMoveError) Unwrap() error {
	return e.Err
}
