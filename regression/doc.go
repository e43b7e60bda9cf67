// Package regression implements the tip model: a column transformer that standardizes
// numeric features and one-hot encodes categorical ones, feeding an ordinary least
// squares linear regressor. Fitted pipelines are persisted with encoding/gob.
//
//	p := regression.NewPipeline(numeric, categorical)
//	if err := p.Fit(train, y); err != nil {
//	    return err
//	}
//	pred, err := p.Predict(test)
package regression
