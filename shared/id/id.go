// Package id provides ID generation helpers used across services.
package id

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultLength = 21

const (
	PrefixRun         = "run"
	PrefixBranch      = "br"
	PrefixIdea        = "idea"
	PrefixVerdict     = "verd"
	PrefixMetaVerdict = "mverd"
	PrefixBrief       = "brief"
	PrefixChatMessage = "msg"
	PrefixStream      = "stream"
	PrefixClient      = "cli"
)

func New(prefix string) string {
	id, err := nanoid.New(DefaultLength)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewWithLength(prefix string, length int) string {
	id, err := nanoid.New(length)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewRun() string         { return New(PrefixRun) }
func NewBranch() string      { return New(PrefixBranch) }
func NewIdea() string        { return New(PrefixIdea) }
func NewVerdict() string     { return New(PrefixVerdict) }
func NewMetaVerdict() string { return New(PrefixMetaVerdict) }
func NewBrief() string       { return New(PrefixBrief) }
func NewChatMessage() string { return New(PrefixChatMessage) }
func NewStream() string      { return New(PrefixStream) }
