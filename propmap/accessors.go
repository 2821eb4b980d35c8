package propmap

// Int returns the int64 element at index under key.
func (m *Map) Int(key string, index int) (int64, ErrorCode) {
	arr, code := m.find(key, index, KindInt)
	if code != ErrNone {
		return 0, code
	}
	return arr.ints[index], ErrNone
}

// Float returns the float64 element at index under key.
func (m *Map) Float(key string, index int) (float64, ErrorCode) {
	arr, code := m.find(key, index, KindFloat)
	if code != ErrNone {
		return 0, code
	}
	return arr.floats[index], ErrNone
}

// Data returns the byte-string element at index under key.
func (m *Map) Data(key string, index int) (Data, ErrorCode) {
	arr, code := m.find(key, index, KindData)
	if code != ErrNone {
		return Data{}, code
	}
	return arr.data[index], ErrNone
}

// VideoNode returns the video-node-ref element at index under key.
func (m *Map) VideoNode(key string, index int) (VideoNodeRef, ErrorCode) {
	arr, code := m.find(key, index, KindVideoNode)
	if code != ErrNone {
		return nil, code
	}
	return arr.vnodes[index], ErrNone
}

// AudioNode returns the audio-node-ref element at index under key.
func (m *Map) AudioNode(key string, index int) (AudioNodeRef, ErrorCode) {
	arr, code := m.find(key, index, KindAudioNode)
	if code != ErrNone {
		return nil, code
	}
	return arr.anodes[index], ErrNone
}

// VideoFrame returns the video-frame-ref element at index under key.
func (m *Map) VideoFrame(key string, index int) (VideoFrameRef, ErrorCode) {
	arr, code := m.find(key, index, KindVideoFrame)
	if code != ErrNone {
		return nil, code
	}
	return arr.vfrms[index], ErrNone
}

// AudioFrame returns the audio-frame-ref element at index under key.
func (m *Map) AudioFrame(key string, index int) (AudioFrameRef, ErrorCode) {
	arr, code := m.find(key, index, KindAudioFrame)
	if code != ErrNone {
		return nil, code
	}
	return arr.afrms[index], ErrNone
}

// Func returns the function-ref element at index under key.
func (m *Map) Func(key string, index int) (FuncRef, ErrorCode) {
	arr, code := m.find(key, index, KindFunc)
	if code != ErrNone {
		return nil, code
	}
	return arr.funcs[index], ErrNone
}

// IntArray returns the entire int64 vector stored under key.
func (m *Map) IntArray(key string) ([]int64, ErrorCode) {
	if m.hasErr {
		return nil, ErrMapError
	}
	arr, ok := m.values[key]
	if !ok {
		return nil, ErrUnset
	}
	if arr.kind != KindInt {
		return nil, ErrType
	}
	return append([]int64(nil), arr.ints...), ErrNone
}

// FloatArray returns the entire float64 vector stored under key.
func (m *Map) FloatArray(key string) ([]float64, ErrorCode) {
	if m.hasErr {
		return nil, ErrMapError
	}
	arr, ok := m.values[key]
	if !ok {
		return nil, ErrUnset
	}
	if arr.kind != KindFloat {
		return nil, ErrType
	}
	return append([]float64(nil), arr.floats...), ErrNone
}

// SetInt stores an int64 under key according to mode.
func (m *Map) SetInt(key string, v int64, mode AppendMode) error {
	return m.setOne(key, KindInt, mode, func(a *array) { a.ints = append(a.ints, v) }, func(a *array) { a.ints = []int64{v} })
}

// SetFloat stores a float64 under key according to mode.
func (m *Map) SetFloat(key string, v float64, mode AppendMode) error {
	return m.setOne(key, KindFloat, mode, func(a *array) { a.floats = append(a.floats, v) }, func(a *array) { a.floats = []float64{v} })
}

// SetData stores a byte-string under key according to mode.
func (m *Map) SetData(key string, b []byte, hint DataHint, mode AppendMode) error {
	d := Data{Bytes: append([]byte(nil), b...), Hint: hint}
	return m.setOne(key, KindData, mode, func(a *array) { a.data = append(a.data, d) }, func(a *array) { a.data = []Data{d} })
}

// SetVideoNode stores a video-node-ref under key according to mode. The
// ref is retained by the Map.
func (m *Map) SetVideoNode(key string, ref VideoNodeRef, mode AppendMode) error {
	ref = ref.Retain()
	return m.setOne(key, KindVideoNode, mode, func(a *array) { a.vnodes = append(a.vnodes, ref) }, func(a *array) { a.vnodes = []VideoNodeRef{ref} })
}

// SetAudioNode stores an audio-node-ref under key according to mode. The
// ref is retained by the Map.
func (m *Map) SetAudioNode(key string, ref AudioNodeRef, mode AppendMode) error {
	ref = ref.Retain()
	return m.setOne(key, KindAudioNode, mode, func(a *array) { a.anodes = append(a.anodes, ref) }, func(a *array) { a.anodes = []AudioNodeRef{ref} })
}

// SetVideoFrame stores a video-frame-ref under key according to mode. The
// ref is retained by the Map.
func (m *Map) SetVideoFrame(key string, ref VideoFrameRef, mode AppendMode) error {
	ref = ref.Retain()
	return m.setOne(key, KindVideoFrame, mode, func(a *array) { a.vfrms = append(a.vfrms, ref) }, func(a *array) { a.vfrms = []VideoFrameRef{ref} })
}

// SetAudioFrame stores an audio-frame-ref under key according to mode. The
// ref is retained by the Map.
func (m *Map) SetAudioFrame(key string, ref AudioFrameRef, mode AppendMode) error {
	ref = ref.Retain()
	return m.setOne(key, KindAudioFrame, mode, func(a *array) { a.afrms = append(a.afrms, ref) }, func(a *array) { a.afrms = []AudioFrameRef{ref} })
}

// SetFunc stores a function-ref under key according to mode.
func (m *Map) SetFunc(key string, fn FuncRef, mode AppendMode) error {
	return m.setOne(key, KindFunc, mode, func(a *array) { a.funcs = append(a.funcs, fn) }, func(a *array) { a.funcs = []FuncRef{fn} })
}

// SetIntArray atomically replaces key with the given int64 vector.
func (m *Map) SetIntArray(key string, v []int64) error {
	if !ValidKey(key) {
		return errInvalidKey(key)
	}
	a := newArray(KindInt)
	a.ints = append([]int64(nil), v...)
	m.insert(key, a)
	return nil
}

// SetFloatArray atomically replaces key with the given float64 vector.
func (m *Map) SetFloatArray(key string, v []float64) error {
	if !ValidKey(key) {
		return errInvalidKey(key)
	}
	a := newArray(KindFloat)
	a.floats = append([]float64(nil), v...)
	m.insert(key, a)
	return nil
}

func (m *Map) setOne(key string, k Kind, mode AppendMode, appendOne func(*array), replaceOne func(*array)) error {
	if !ValidKey(key) {
		return errInvalidKey(key)
	}
	if mode == Replace {
		a := newArray(k)
		replaceOne(a)
		m.insert(key, a)
		return nil
	}
	existing, ok := m.values[key]
	if ok && existing.kind != k {
		return errTypeMismatch(key, existing.kind, k)
	}
	a := m.detach(key, k)
	appendOne(a)
	return nil
}
