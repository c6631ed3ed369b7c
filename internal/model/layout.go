package model

import "strconv"

// SeatsPerRow is the width of a generated seat layout.
const SeatsPerRow = 10

// RowLabel converts a zero-based row index to a label like A, B, ..., Z, AA.
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for l, r := 0, len(res)-1; l < r; l, r = l+1, r-1 {
		res[l], res[r] = res[r], res[l]
	}
	return string(res)
}

// SeatLayout returns the seat numbers of a screening with total seats,
// filled row by row: A1..A10, B1..B10 and so on.
func SeatLayout(total int) []string {
	out := make([]string, 0, total)
	for i := 0; i < total; i++ {
		out = append(out, RowLabel(i/SeatsPerRow)+strconv.Itoa(i%SeatsPerRow+1))
	}
	return out
}

// SeatRow returns the row label part of a seat number such as "AB12".
func SeatRow(seatNumber string) string {
	for i, r := range seatNumber {
		if r < 'A' || r > 'Z' {
			return seatNumber[:i]
		}
	}
	return seatNumber
}
