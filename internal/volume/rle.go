package volume

// RLE: последовательность пар (value, count) -> count повторов value.

// DecompressRLE раскрывает пары (value, count).
// При нечетной длине последний байт отбрасывается, truncated = true.
func DecompressRLE(data []byte) (out []byte, truncated bool) {
	n := len(data)
	if n%2 != 0 {
		truncated = true
		n--
	}

	size := 0
	for i := 1; i < n; i += 2 {
		size += int(data[i])
	}

	out = make([]byte, 0, size)
	for i := 0; i < n; i += 2 {
		value, count := data[i], int(data[i+1])
		for j := 0; j < count; j++ {
			out = append(out, value)
		}
	}
	return out, truncated
}

// CompressRLE кодирует поток в пары (value, count); длинные серии
// разбиваются по 255.
func CompressRLE(data []byte) []byte {
	out := make([]byte, 0, len(data)/2+2)
	for i := 0; i < len(data); {
		value := data[i]
		run := 1
		for i+run < len(data) && data[i+run] == value && run < 255 {
			run++
		}
		out = append(out, value, byte(run))
		i += run
	}
	return out
}
