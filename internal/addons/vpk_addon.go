package addons

import (
	"context"
	"errors"

	"github.com/spf13/afero"

	"github.com/bnema/vpkctl/internal/vpk"
	"github.com/bnema/vpkctl/internal/workshop"
)

// VpkAddon is a node backed by a VPK package
type VpkAddon interface {
	Node
	// VpkPath is the absolute path of the package, "" while unresolved
	VpkPath() string
	// AddonInfo reads addoninfo.txt from the package. The result is cached
	// until ClearCaches.
	AddonInfo() (*vpk.AddonInfo, error)
	// Image returns the preview image bytes, nil when there is none. It
	// blocks and must not be called on the scheduler.
	Image(ctx context.Context) ([]byte, error)
}

// vpkBase holds what both VPK variants share
type vpkBase struct {
	nodeBase
	info  *vpk.AddonInfo
	image imageCache
}

type imageCache struct {
	data   []byte
	loaded bool
}

func (v *vpkBase) vpkSelf() VpkAddon {
	return v.self.(VpkAddon)
}

func (v *vpkBase) AddonInfo() (*vpk.AddonInfo, error) {
	if v.info != nil {
		return v.info, nil
	}
	path := v.vpkSelf().VpkPath()
	if path == "" {
		return nil, errors.New("package file is not resolved")
	}
	pkg, err := vpk.Open(v.root.fs, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pkg.Close() }()

	info, err := pkg.ReadAddonInfo()
	if err != nil {
		return nil, err
	}
	v.info = info
	return info, nil
}

func (v *vpkBase) ClearCaches() {
	v.info = nil
	v.image = imageCache{}
}

// checkPackage raises InvalidVpkProblem when path exists but is not a VPK
func (v *vpkBase) checkPackage(path string) {
	if path == "" {
		return
	}
	if exists, _ := afero.Exists(v.root.fs, path); !exists {
		return
	}
	pkg, err := vpk.Open(v.root.fs, path)
	if err != nil {
		v.addProblem(&InvalidVpkProblem{source: v.self, Path: path, Err: err})
		return
	}
	_ = pkg.Close()
}

func (v *vpkBase) onDestroy() func() {
	v.root.unregisterVpk(v.vpkSelf())
	return v.nodeBase.onDestroy()
}

func readVpkImage(fs afero.Fs, path string) ([]byte, error) {
	pkg, err := vpk.Open(fs, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pkg.Close() }()
	return pkg.AddonImage()
}

// imageState is passed through the image pipelines
type imageState struct {
	node VpkAddon
	path string
	data []byte

	publishedFileID uint64
	hasID           bool
	details         *workshop.PublishedFileDetails
	fetched         bool
	client          WorkshopClient
}

// imageLookupStage ends the pipeline on a cache hit and otherwise resolves
// the package path
func imageLookupStage() stage[imageState] {
	return stage[imageState]{
		name: "lookup",
		exec: onScheduler,
		run: func(_ context.Context, st *imageState) (bool, error) {
			b := vpkBaseOf(st.node)
			if b == nil || !b.valid {
				return false, ErrNodeInvalid
			}
			if b.image.loaded {
				st.data = b.image.data
				return true, nil
			}
			st.path = st.node.VpkPath()
			return false, nil
		},
	}
}

func imageReadVpkStage(fs afero.Fs) stage[imageState] {
	return stage[imageState]{
		name: "read vpk",
		exec: onCaller,
		run: func(_ context.Context, st *imageState) (bool, error) {
			if st.data != nil || st.path == "" {
				return false, nil
			}
			data, err := readVpkImage(fs, st.path)
			if err != nil {
				return false, nil
			}
			st.data = data
			return false, nil
		},
	}
}

func imageStoreStage() stage[imageState] {
	return stage[imageState]{
		name: "store",
		exec: onScheduler,
		run: func(_ context.Context, st *imageState) (bool, error) {
			if b := vpkBaseOf(st.node); b != nil && b.valid {
				b.image = imageCache{data: st.data, loaded: true}
			}
			return true, nil
		},
	}
}

func vpkBaseOf(n Node) *vpkBase {
	switch a := n.(type) {
	case *LocalVpkAddon:
		return &a.vpkBase
	case *WorkshopVpkAddon:
		return &a.vpkBase
	}
	return nil
}
