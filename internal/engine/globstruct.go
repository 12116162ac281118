package engine

import (
	"sort"

	"github.com/llir/llvm/ir/types"
)

// The core plugin hands out a pointer to its GlobStruct, whose handle slots
// tell the other plugins where their siblings live. Only the prefix that
// matters is modelled: 48 bytes of padding, 36 module handles, 30 bytes of
// padding.
const (
	globStructHead  = 48
	globStructSlots = 36
	globStructTail  = 30
)

var globStructType = types.NewStruct(
	types.NewArray(globStructHead, types.I8),
	types.NewArray(globStructSlots, i8ptr),
	types.NewArray(globStructTail, types.I8),
)

// globStructSlot maps a plugin file stem onto its handle slot.
var globStructSlot = map[string]int{
	"DBProSetupDebug":       0,
	"DBProTextDebug":        1,
	"DBProBasic2DDebug":     2,
	"DBProSpritesDebug":     3,
	"DBProImageDebug":       4,
	"DBProInputDebug":       5,
	"DBProSystemDebug":      6,
	"DBProFileDebug":        7,
	"DBProFTPDebug":         8,
	"DBProMemblocksDebug":   9,
	"DBProBitmapDebug":      10,
	"DBProAnimationDebug":   11,
	"DBProMultiplayerDebug": 12,
	"DBProBasic3DDebug":     13,
	"DBProCameraDebug":      14,
	"DBProMatrixDebug":      15,
	"DBProLightDebug":       16,
	"DBProWorld3DDebug":     17,
	"DBProParticlesDebug":   18,
	"DBProPrimObjectDebug":  19,
	"DBProVectorsDebug":     20,
	"DBProSoundDebug":       26,
	"DBProMusicDebug":       27,
	"DBProLODTerrainDebug":  28,
	"DBProQ2BSPDebug":       29,
	"DBProOwnBSPDebug":      30,
	"DBProBSPCompilerDebug": 31,
	"DBProCSGDebug":         32,
	"DBProTransformsDebug":  35,
}

// GlobStructSlot reports the handle slot of a plugin, if it has one.
func GlobStructSlot(pluginName string) (int, bool) {
	i, ok := globStructSlot[pluginName]
	return i, ok
}

type slotEntry struct {
	plugin string
	slot   int
}

// slotsInOrder lists the slot table sorted by slot index.
func slotsInOrder() []slotEntry {
	out := make([]slotEntry, 0, len(globStructSlot))
	for p, i := range globStructSlot {
		out = append(out, slotEntry{p, i})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].slot < out[j].slot })
	return out
}
