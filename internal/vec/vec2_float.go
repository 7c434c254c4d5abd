package vec

// Vec2Float представляет 2D координаты с плавающей точкой (плоскость XZ мира)
type Vec2Float struct {
	X, Y float64
}
