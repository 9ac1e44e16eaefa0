package ml

import "testing"

func TestSplitDatasetDeterministic(t *testing.T) {
	features := make([][]float64, 10)
	targets := make([]float64, 10)
	for i := range features {
		features[i] = []float64{float64(i)}
		targets[i] = float64(i)
	}

	trainX, trainY, testX, testY := SplitDataset(features, targets, 0.2, 42)
	if len(trainX) != 8 || len(testX) != 2 {
		t.Fatalf("expected 8/2 split, got %d/%d", len(trainX), len(testX))
	}
	for i := range trainX {
		if trainX[i][0] != trainY[i] {
			t.Fatalf("features and targets out of step at %d", i)
		}
	}

	againX, _, _, _ := SplitDataset(features, targets, 0.2, 42)
	for i := range againX {
		if againX[i][0] != trainX[i][0] {
			t.Fatalf("split not deterministic at %d", i)
		}
	}
	_ = testY
}

func TestSplitDatasetKeepsTrainingRow(t *testing.T) {
	trainX, _, testX, _ := SplitDataset([][]float64{{1}}, []float64{1}, 0.9, 1)
	if len(trainX) != 1 || len(testX) != 0 {
		t.Fatalf("expected single training row, got %d/%d", len(trainX), len(testX))
	}
}

func TestEvaluate(t *testing.T) {
	features, targets := linearFixture()
	model := &LinearRegression{}
	if err := model.Fit(features, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metrics, err := Evaluate(model, features, targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.MSE > 1e-9 || metrics.R2 < 0.999999 {
		t.Fatalf("expected near perfect fit, got %+v", metrics)
	}
	if metrics.Samples != len(features) {
		t.Fatalf("expected %d samples, got %d", len(features), metrics.Samples)
	}

	if _, err := Evaluate(model, nil, nil); err == nil {
		t.Fatal("expected error for empty set")
	}
}
