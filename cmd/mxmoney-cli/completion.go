package main

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

var recurrences = predict.Set{"NONE", "DAILY", "WEEKLY", "MONTHLY", "YEARLY"}

// completion describes the command line for shell completion. Install it
// with COMP_INSTALL=1 mxmoney-cli.
var completion = &complete.Command{
	Flags: map[string]complete.Predictor{
		"plain": predict.Nothing,
	},
	Sub: map[string]*complete.Command{
		"balance": {Flags: map[string]complete.Predictor{"d": predict.Something}},
		"projection": {Flags: map[string]complete.Predictor{
			"d":    predict.Something,
			"days": predict.Something,
			"all":  predict.Nothing,
		}},
		"simulate": {Flags: map[string]complete.Predictor{
			"amount": predict.Something,
			"d":      predict.Something,
			"days":   predict.Something,
			"r":      recurrences,
			"n":      predict.Something,
			"all":    predict.Nothing,
		}},
		"generate": {Flags: map[string]complete.Predictor{"d": predict.Something}},
		"report": {Flags: map[string]complete.Predictor{
			"lang":     predict.Set{"en", "pt-BR"},
			"analysis": predict.Nothing,
		}},
		"import": {
			Flags: map[string]complete.Predictor{"save": predict.Nothing},
			Args:  predict.Files("*.csv"),
		},
		"backup": {Args: predict.Set{"list", "create", "restore", "delete"}},
		"help":   {},
	},
}
