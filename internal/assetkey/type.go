package assetkey

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AssetType tags the kind of content held under a key.
type AssetType int

// Asset type codes match the wire values used by asset servers.
const (
	Texture           AssetType = 0
	Sound             AssetType = 1
	CallingCard       AssetType = 2
	Landmark          AssetType = 3
	Script            AssetType = 4
	Clothing          AssetType = 5
	Object            AssetType = 6
	Notecard          AssetType = 7
	Category          AssetType = 8
	LSLText           AssetType = 10
	LSLBytecode       AssetType = 11
	TextureTGA        AssetType = 12
	Bodypart          AssetType = 13
	SoundWAV          AssetType = 17
	ImageTGA          AssetType = 18
	ImageJPEG         AssetType = 19
	Animation         AssetType = 20
	Gesture           AssetType = 21
	SimState          AssetType = 22
	Link              AssetType = 24
	LinkFolder        AssetType = 25
	MarketplaceFolder AssetType = 26
	Widget            AssetType = 40
	Person            AssetType = 45
	Mesh              AssetType = 49
	Settings          AssetType = 56
	Material          AssetType = 57
	GLTF              AssetType = 58
	GLTFBin           AssetType = 59
	Unknown           AssetType = 255
)

var typeNames = map[AssetType]string{
	Texture:           "TEXTURE",
	Sound:             "SOUND",
	CallingCard:       "CALLINGCARD",
	Landmark:          "LANDMARK",
	Script:            "SCRIPT",
	Clothing:          "CLOTHING",
	Object:            "OBJECT",
	Notecard:          "NOTECARD",
	Category:          "CATEGORY",
	LSLText:           "LSL_TEXT",
	LSLBytecode:       "LSL_BYTECODE",
	TextureTGA:        "TEXTURE_TGA",
	Bodypart:          "BODYPART",
	SoundWAV:          "SOUND_WAV",
	ImageTGA:          "IMAGE_TGA",
	ImageJPEG:         "IMAGE_JPEG",
	Animation:         "ANIMATION",
	Gesture:           "GESTURE",
	SimState:          "SIMSTATE",
	Link:              "LINK",
	LinkFolder:        "LINK_FOLDER",
	MarketplaceFolder: "MARKETPLACE_FOLDER",
	Widget:            "WIDGET",
	Person:            "PERSON",
	Mesh:              "MESH",
	Settings:          "SETTINGS",
	Material:          "MATERIAL",
	GLTF:              "GLTF",
	GLTFBin:           "GLTF_BIN",
	Unknown:           "UNKNOWN",
}

var typesByName = func() map[string]AssetType {
	out := make(map[string]AssetType, len(typeNames))
	for typ, name := range typeNames {
		out[name] = typ
	}
	return out
}()

var labelCaser = cases.Title(language.Und)

// String returns the canonical upper-case name, or "UNKNOWN" for unrecognized codes.
func (t AssetType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return typeNames[Unknown]
}

// Label returns a display form such as "Texture Tga".
func (t AssetType) Label() string {
	return labelCaser.String(strings.ReplaceAll(strings.ToLower(t.String()), "_", " "))
}

// ParseType resolves a type name case-insensitively. Unrecognized names map to Unknown.
func ParseType(value string) AssetType {
	name := strings.ToUpper(strings.TrimSpace(value))
	name = strings.ReplaceAll(name, "-", "_")
	if typ, ok := typesByName[name]; ok {
		return typ
	}
	return Unknown
}

// Types returns every known asset type in code order.
func Types() []AssetType {
	out := make([]AssetType, 0, len(typeNames))
	for code := 0; code <= int(Unknown); code++ {
		if _, ok := typeNames[AssetType(code)]; ok {
			out = append(out, AssetType(code))
		}
	}
	return out
}
