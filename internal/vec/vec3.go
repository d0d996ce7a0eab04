package vec

import "math"

// Vec3 представляет трехмерный вектор с целочисленными координатами (ячейка сетки).
// Y: вертикальная ось, шахты растут в сторону отрицательного Y.
type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Down единичный вектор, направленный вниз
var Down = Vec3Float{X: 0, Y: -1, Z: 0}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Floor возвращает ячейку, в которой лежит точка
func (v Vec3Float) Floor() Vec3 {
	return Vec3{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// Length возвращает длину вектора
func (v Vec3Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize возвращает единичный вектор того же направления.
// Для нулевого вектора возвращается нулевой вектор.
func (v Vec3Float) Normalize() Vec3Float {
	l := v.Length()
	if l == 0 {
		return Vec3Float{}
	}
	return Vec3Float{X: v.X / l, Y: v.Y / l, Z: v.Z / l}
}

// IsFinite проверяет, что все координаты конечны
func (v Vec3Float) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
