package vectorizer

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	pcaOversample = 10
	eigenEpsilon  = 1e-10
)

type pcaFit struct {
	mean       []float64
	components [][]float64 // k rows of length numFeatures
	varRatio   []float64
}

// fitPCA finds the top k principal axes of rows with a randomized subspace
// iteration seeded from seed. Rank deficient trailing axes come back as
// zero rows.
func fitPCA(ctx context.Context, rows []sparseRow, numFeatures, k, iterations int, seed uint64) (*pcaFit, error) {
	n := len(rows)
	mean := make([]float64, numFeatures)
	for _, r := range rows {
		for j, t := range r.idx {
			mean[t] += r.val[j]
		}
	}
	floats.Scale(1/float64(n), mean)

	l := min(k+pcaOversample, n, numFeatures)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	omega := mat.NewDense(numFeatures, l, nil)
	for j := 0; j < l; j++ {
		for t := 0; t < numFeatures; t++ {
			omega.Set(t, j, rng.NormFloat64())
		}
	}

	q, err := mulCentered(ctx, rows, mean, omega)
	if err != nil {
		return nil, err
	}
	if q, err = orthonormalBasis(q); err != nil {
		return nil, err
	}
	for it := 0; it < iterations; it++ {
		z, err := mulCenteredT(ctx, rows, mean, q)
		if err != nil {
			return nil, err
		}
		if z, err = orthonormalBasis(z); err != nil {
			return nil, err
		}
		if q, err = mulCentered(ctx, rows, mean, z); err != nil {
			return nil, err
		}
		if q, err = orthonormalBasis(q); err != nil {
			return nil, err
		}
	}

	// b = Xc^T Q, numFeatures x l
	b, err := mulCenteredT(ctx, rows, mean, q)
	if err != nil {
		return nil, err
	}
	gram := mat.NewSymDense(l, nil)
	gram.SymOuterK(1, b.T())

	var eig mat.EigenSym
	if !eig.Factorize(gram, true) {
		return nil, errors.New("pca: eigen decomposition did not converge")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	order := make([]int, l)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return values[order[i]] > values[order[j]] })

	var total float64
	for _, r := range rows {
		total += r.sqNorm()
	}
	total -= float64(n) * floats.Dot(mean, mean)

	fit := &pcaFit{
		mean:       mean,
		components: make([][]float64, k),
		varRatio:   make([]float64, k),
	}
	top := 0.0
	if l > 0 {
		top = values[order[0]]
	}
	for i := 0; i < k; i++ {
		comp := make([]float64, numFeatures)
		fit.components[i] = comp
		if i >= l {
			continue
		}
		lambda := values[order[i]]
		if lambda <= 0 || lambda <= eigenEpsilon*top {
			continue
		}
		dst := mat.NewVecDense(numFeatures, comp)
		dst.MulVec(b, vectors.ColView(order[i]))
		floats.Scale(1/math.Sqrt(lambda), comp)
		flipSign(comp)
		if total > 0 {
			fit.varRatio[i] = lambda / total
		}
	}
	return fit, nil
}

// mulCentered returns (X - 1 mean^T) W, one goroutine per column of W.
func mulCentered(ctx context.Context, rows []sparseRow, mean []float64, w *mat.Dense) (*mat.Dense, error) {
	_, cols := w.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for j := 0; j < cols; j++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			col := mat.Col(nil, j, w)
			shift := floats.Dot(mean, col)
			for i, r := range rows {
				var s float64
				for p, t := range r.idx {
					s += r.val[p] * col[t]
				}
				out.Set(i, j, s-shift)
			}
			return nil
		})
	}
	return out, g.Wait()
}

// mulCenteredT returns (X - 1 mean^T)^T U, one goroutine per column of U.
func mulCenteredT(ctx context.Context, rows []sparseRow, mean []float64, u *mat.Dense) (*mat.Dense, error) {
	_, cols := u.Dims()
	out := mat.NewDense(len(mean), cols, nil)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for j := 0; j < cols; j++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			col := mat.Col(nil, j, u)
			z := make([]float64, len(mean))
			for i, r := range rows {
				for p, t := range r.idx {
					z[t] += r.val[p] * col[i]
				}
			}
			floats.AddScaled(z, -floats.Sum(col), mean)
			out.SetCol(j, z)
			return nil
		})
	}
	return out, g.Wait()
}

// orthonormalBasis returns the left singular vectors of a thin SVD of a,
// an orthonormal basis with the same column count.
func orthonormalBasis(a *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.New("pca: svd did not converge")
	}
	var u mat.Dense
	svd.UTo(&u)
	return &u, nil
}

// flipSign makes the largest magnitude entry positive.
func flipSign(x []float64) {
	best, at := 0.0, -1
	for i, v := range x {
		if a := math.Abs(v); a > best {
			best, at = a, i
		}
	}
	if at >= 0 && x[at] < 0 {
		floats.Scale(-1, x)
	}
}
