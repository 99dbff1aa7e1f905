package uac

// WireToBus converts wire channel samples in src to bus-native samples in
// dst and returns the number of bytes written to dst.
//
// Each 3-byte sample becomes a 4-byte word whose padding byte is zero. The
// number of samples converted is the lesser of len(src)/3 and len(dst)/4;
// a trailing partial sample in src is ignored.
func WireToBus(dst, src []byte) int {
	n := len(src) / WireSampleSize
	if m := len(dst) / BusSampleSize; n > m {
		n = m
	}
	for i := 0; i < n; i++ {
		s := src[i*WireSampleSize : i*WireSampleSize+WireSampleSize]
		d := dst[i*BusSampleSize : i*BusSampleSize+BusSampleSize]
		d[0] = 0
		d[1] = s[0]
		d[2] = s[1]
		d[3] = s[2]
	}
	return n * BusSampleSize
}

// BusToWire converts bus-native channel samples in src to wire samples in
// dst and returns the number of bytes written to dst.
//
// The padding byte of each word is dropped. The number of samples converted
// is the lesser of len(src)/4 and len(dst)/3.
func BusToWire(dst, src []byte) int {
	n := len(src) / BusSampleSize
	if m := len(dst) / WireSampleSize; n > m {
		n = m
	}
	for i := 0; i < n; i++ {
		s := src[i*BusSampleSize : i*BusSampleSize+BusSampleSize]
		d := dst[i*WireSampleSize : i*WireSampleSize+WireSampleSize]
		d[0] = s[1]
		d[1] = s[2]
		d[2] = s[3]
	}
	return n * WireSampleSize
}

// BusSize returns the bus-native size of wireBytes of whole wire samples.
func BusSize(wireBytes int) int {
	return wireBytes / WireSampleSize * BusSampleSize
}

// WireSize returns the wire size of busBytes of whole bus-native samples.
func WireSize(busBytes int) int {
	return busBytes / BusSampleSize * WireSampleSize
}
