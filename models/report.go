package models

// EvaluationReport holds the held-out metrics of a trained model
type EvaluationReport struct {
	TrainRows    int
	TestRows     int
	TrainMonths  []string
	TestMonths   []string
	MSE          float64
	RMSE         float64
	R2           float64
	Coefficients map[string]float64 // encoded feature name -> weight
	Intercept    float64
	ModelPath    string
}
