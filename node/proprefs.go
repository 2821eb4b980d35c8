package node

import "github.com/zsiec/framegraph/propmap"

// VideoNodeRef adapts a *Node to propmap.VideoNodeRef so a video Node can
// be stored directly in a property map at a plugin ABI boundary.
type VideoNodeRef struct{ *Node }

func (r VideoNodeRef) Retain() propmap.VideoNodeRef { return VideoNodeRef{r.Node.Retain()} }
func (r VideoNodeRef) Release()                     { r.Node.Release() }

// AudioNodeRef adapts a *Node to propmap.AudioNodeRef.
type AudioNodeRef struct{ *Node }

func (r AudioNodeRef) Retain() propmap.AudioNodeRef { return AudioNodeRef{r.Node.Retain()} }
func (r AudioNodeRef) Release()                     { r.Node.Release() }
