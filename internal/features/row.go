package features

// FeatureRow is one record of the engineered feature matrix: every derived
// numeric and encoded column, ready for direct numeric consumption by the
// model. RaceID and HorseName are carried for grouping and display only.
type FeatureRow struct {
	RaceID    string `json:"race_id"`
	HorseID   string `json:"horse_id"`
	HorseName string `json:"horse_name,omitempty"`

	JockeyWinRate    float64 `json:"jockey_win_rate"`
	TrainerWinRate   float64 `json:"trainer_win_rate"`
	SireWinRate      float64 `json:"sire_win_rate"`
	DamsireWinRate   float64 `json:"damsire_win_rate"`
	CourseAptitude   float64 `json:"course_type_win_rate"`
	DistanceAptitude float64 `json:"dist_cat_win_rate"`

	HorseCode      int `json:"horse_code"`
	JockeyCode     int `json:"jockey_code"`
	TrainerCode    int `json:"trainer_code"`
	SireCode       int `json:"sire_code"`
	DamsireCode    int `json:"damsire_code"`
	CourseTypeCode int `json:"course_type_code"`
	WeatherCode    int `json:"weather_code"`
	ConditionCode  int `json:"condition_code"`

	Waku       float64 `json:"waku"`
	Umaban     float64 `json:"umaban"`
	Distance   float64 `json:"distance"`
	WeightDiff float64 `json:"weight_diff"`

	SpeedIndex     float64 `json:"speed_index"`
	Lag1Rank       float64 `json:"lag1_rank"`
	Lag1SpeedIndex float64 `json:"lag1_speed_index"`
	Lag1Last3F     float64 `json:"lag1_last_3f"`
	IntervalDays   float64 `json:"interval"`

	RunningStyle     int     `json:"running_style"`
	FrontRunnerCount float64 `json:"front_runner_count"`
	PaceRatio        float64 `json:"pace_ratio"`
	Last3FTime       float64 `json:"last_3f_time"`
	Last3FRank       float64 `json:"last_3f_rank"`
	Last3FDeviation  float64 `json:"last_3f_deviation"`

	// Rank is the target column: the numeric finishing rank, 0 when the raw
	// rank was non-numeric (only possible on transform batches).
	Rank float64 `json:"rank"`
}

// FeatureNames returns the model feature columns in their fixed order.
// The order is part of the contract with the model service and must not
// change between fit and transform.
func FeatureNames() []string {
	return []string{
		"jockey_win_rate",
		"trainer_win_rate",
		"horse_id",
		"jockey_id",
		"trainer_id",
		"waku",
		"umaban",
		"course_type",
		"distance",
		"weather",
		"condition",
		"lag1_rank",
		"lag1_speed_index",
		"lag1_last_3f",
		"interval",
		"weight_diff",
		"sire_id",
		"damsire_id",
		"running_style",
		"sire_win_rate",
		"damsire_win_rate",
		"course_type_win_rate",
		"dist_cat_win_rate",
		"front_runner_count",
		"pace_ratio",
		"last_3f_rank",
		"last_3f_deviation",
	}
}

// Vector flattens the row into the FeatureNames order.
func (r *FeatureRow) Vector() []float64 {
	return []float64{
		r.JockeyWinRate,
		r.TrainerWinRate,
		float64(r.HorseCode),
		float64(r.JockeyCode),
		float64(r.TrainerCode),
		r.Waku,
		r.Umaban,
		float64(r.CourseTypeCode),
		r.Distance,
		float64(r.WeatherCode),
		float64(r.ConditionCode),
		r.Lag1Rank,
		r.Lag1SpeedIndex,
		r.Lag1Last3F,
		r.IntervalDays,
		r.WeightDiff,
		float64(r.SireCode),
		float64(r.DamsireCode),
		float64(r.RunningStyle),
		r.SireWinRate,
		r.DamsireWinRate,
		r.CourseAptitude,
		r.DistanceAptitude,
		r.FrontRunnerCount,
		r.PaceRatio,
		r.Last3FRank,
		r.Last3FDeviation,
	}
}
