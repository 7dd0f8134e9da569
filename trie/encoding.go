package trie

// Keys are walked as nibble sequences, high nibble first. Partial keys are
// stored packed two nibbles per byte; an odd-length partial key puts its
// first nibble alone in the low half of the first byte.

// keyToNibbles expands a byte key to one nibble per byte.
func keyToNibbles(key []byte) []byte {
	nibbles := make([]byte, len(key)*2)
	for i, b := range key {
		nibbles[i*2] = b >> 4
		nibbles[i*2+1] = b & 0x0f
	}
	return nibbles
}

// nibblesToKey packs an even-length nibble sequence back into bytes.
func nibblesToKey(nibbles []byte) []byte {
	key := make([]byte, len(nibbles)/2)
	for i := range key {
		key[i] = nibbles[i*2]<<4 | nibbles[i*2+1]
	}
	return key
}

// packNibbles packs a partial key for a node encoding.
func packNibbles(nibbles []byte) []byte {
	out := make([]byte, (len(nibbles)+1)/2)
	i, o := 0, 0
	if len(nibbles)%2 == 1 {
		out[0] = nibbles[0]
		i, o = 1, 1
	}
	for ; i < len(nibbles); i, o = i+2, o+1 {
		out[o] = nibbles[i]<<4 | nibbles[i+1]
	}
	return out
}

// unpackNibbles expands count nibbles from packed data. It fails when the
// padding nibble of an odd-length key is not zero.
func unpackNibbles(data []byte, count int) ([]byte, error) {
	out := make([]byte, 0, count)
	if count%2 == 1 {
		if data[0]&0xf0 != 0 {
			return nil, errBadPadding
		}
		out = append(out, data[0]&0x0f)
		data = data[1:]
	}
	for _, b := range data {
		out = append(out, b>>4, b&0x0f)
	}
	return out, nil
}

// prefixLen returns the length of the common prefix of a and b.
func prefixLen(a, b []byte) int {
	var i, length int
	if len(a) < len(b) {
		length = len(a)
	} else {
		length = len(b)
	}
	for ; i < length; i++ {
		if a[i] != b[i] {
			break
		}
	}
	return i
}

// hasPrefix reports whether key starts with prefix.
func hasPrefix(key, prefix []byte) bool {
	return len(key) >= len(prefix) && prefixLen(key, prefix) == len(prefix)
}
