package detection

import "sort"

// Metrics summarises classifier quality on a held-out set.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1Score"`
	AUC       float64 `json:"aucScore"`
	Samples   int     `json:"samples"`
}

func evaluate(probs []float64, y []int, threshold float64) Metrics {
	var tp, fp, tn, fn float64
	for i, p := range probs {
		pred := p > threshold
		switch {
		case pred && y[i] == 1:
			tp++
		case pred && y[i] == 0:
			fp++
		case !pred && y[i] == 0:
			tn++
		default:
			fn++
		}
	}
	m := Metrics{Samples: len(y)}
	if total := tp + fp + tn + fn; total > 0 {
		m.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.AUC = auc(probs, y)
	return m
}

// auc is the Mann-Whitney estimate with averaged ranks for ties.
func auc(probs []float64, y []int) float64 {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, len(probs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && probs[idx[j+1]] == probs[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = r
		}
		i = j + 1
	}

	var pos, neg, sum float64
	for i, label := range y {
		if label == 1 {
			pos++
			sum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (sum - pos*(pos+1)/2) / (pos * neg)
}
