package addons

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const (
	LocalVpkExt     = ".vpk"
	localLinkPrefix = "local_"
)

// LocalVpkAddon is a VPK file the user placed in the library
type LocalVpkAddon struct {
	vpkBase
	vpkID uuid.UUID
}

func NewLocalVpkAddon(root *Root, parent *Group, name string) (*LocalVpkAddon, error) {
	a := &LocalVpkAddon{}
	if err := root.initNode(&a.nodeBase, a, parent, name); err != nil {
		return nil, err
	}
	root.registerVpk(a)
	return a, nil
}

func (a *LocalVpkAddon) kind() Kind { return KindLocalVpk }

func (a *LocalVpkAddon) RequiresFile() bool    { return true }
func (a *LocalVpkAddon) FileExtension() string { return LocalVpkExt }

func (a *LocalVpkAddon) VpkPath() string {
	return a.FullFilePath()
}

// VpkID is the token naming the link created on push. It is uuid.Nil until
// the first push.
func (a *LocalVpkAddon) VpkID() uuid.UUID {
	return a.vpkID
}

func (a *LocalVpkAddon) ensureVpkID() uuid.UUID {
	if a.vpkID == uuid.Nil {
		a.vpkID = uuid.New()
		a.root.RequestSave()
	}
	return a.vpkID
}

// LinkFileName is the name of the link in the game's addon directory
func (a *LocalVpkAddon) LinkFileName() string {
	if a.vpkID == uuid.Nil {
		return ""
	}
	return localLinkName(a.vpkID)
}

func localLinkName(id uuid.UUID) string {
	return localLinkPrefix + strings.ReplaceAll(id.String(), "-", "") + LocalVpkExt
}

func (a *LocalVpkAddon) onPostCheck() {
	a.nodeBase.onPostCheck()
	if _, ok := a.FileSize(); ok {
		a.checkPackage(a.VpkPath())
	}
}

func (a *LocalVpkAddon) Image(ctx context.Context) ([]byte, error) {
	st := &imageState{node: a}
	err := runPipeline(ctx, a.root.sched, st,
		imageLookupStage(),
		imageReadVpkStage(a.root.fs),
		imageStoreStage(),
	)
	return st.data, err
}

func (a *LocalVpkAddon) record() Record {
	return &LocalVpkRecord{
		NodeRecord: a.nodeRecord(),
		VpkID:      a.vpkID,
	}
}

func (a *LocalVpkAddon) applyRecord(rec Record) {
	r, ok := rec.(*LocalVpkRecord)
	if !ok {
		return
	}
	a.vpkID = r.VpkID
	a.applyNodeRecord(&r.NodeRecord)
}
