package overtime

// Combine sums breakdowns field by field. The result is counted if any part
// is; pay is summed over the parts that carry it. Worked time of a part that
// does not count is left out, so Worked matches Total. Order does not matter.
func Combine(parts ...Breakdown) Breakdown {
	var out Breakdown
	for _, b := range parts {
		if b.Counted {
			out.Worked += b.Worked
		}
		out.Regular += b.Regular
		out.Surcharge25 += b.Surcharge25
		out.Supplementary50 += b.Supplementary50
		out.Extraordinary100 += b.Extraordinary100
		out.Night += b.Night
		out.Counted = out.Counted || b.Counted
		out.DaysCounted += b.DaysCounted
		out.Pay = addPay(out.Pay, b.Pay)
	}
	return out
}

func addPay(a, b *Pay) *Pay {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		c := *b
		return &c
	case b == nil:
		c := *a
		return &c
	}
	return &Pay{
		Regular:          a.Regular.Add(b.Regular),
		Surcharge25:      a.Surcharge25.Add(b.Surcharge25),
		Supplementary50:  a.Supplementary50.Add(b.Supplementary50),
		Extraordinary100: a.Extraordinary100.Add(b.Extraordinary100),
		Total:            a.Total.Add(b.Total),
	}
}
