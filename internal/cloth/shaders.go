package cloth

// WGSL kernels for the GPU backend. The CPU path is the behavioral
// reference for these shaders; the collide kernel diverges in cadence
// and contact normal (noted on the kernel). All vectors are vec4-padded
// for storage buffer alignment.

// Per-frame simulation parameters, written once per substep (and again
// per solver iteration for omega). Must match gpuSimParams in gpu.go.
const shaderCommon = `
struct SimParams {
    gravity: vec4<f32>,
    wind: vec4<f32>,
    dt: f32,
    vel_scale: f32,        // damping * (1 - drag)
    omega: f32,
    margin: f32,
    stiffness: f32,
    static_friction: f32,
    dynamic_friction: f32,
    drag_coeff: f32,
    lift_coeff: f32,
    particle_count: u32,
    pad0: f32,
    pad1: f32,
}

struct BatchParams {
    start: u32,
    count: u32,
    unilateral: u32,
    compliance_override: f32, // < 0 means use per-constraint compliance
}
`

// aeroShader gathers the wind force on one particle from its adjacent
// triangles (fan average) into the force buffer. It runs as its own
// dispatch before integration: every invocation reads pre-integration
// positions of neighboring vertices, so positions and prev_positions
// must not be written in the same pass.
const aeroShader = shaderCommon + `
@group(0) @binding(0) var<storage, read> positions: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read> prev_positions: array<vec4<f32>>;
@group(0) @binding(2) var<storage, read> indices: array<u32>;
@group(0) @binding(3) var<storage, read> adj_offsets: array<u32>;
@group(0) @binding(4) var<storage, read> adj_refs: array<u32>;
@group(0) @binding(5) var<storage, read_write> forces: array<vec4<f32>>;
@group(0) @binding(6) var<uniform> params: SimParams;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= params.particle_count) {
        return;
    }

    var force = vec3<f32>(0.0);
    let begin = adj_offsets[i];
    let end = adj_offsets[i + 1u];
    for (var k = begin; k < end; k = k + 1u) {
        let t = adj_refs[k] * 3u;
        let i0 = indices[t];
        let i1 = indices[t + 1u];
        let i2 = indices[t + 2u];

        let p0 = positions[i0].xyz;
        let p1 = positions[i1].xyz;
        let p2 = positions[i2].xyz;

        let v0 = p0 - prev_positions[i0].xyz;
        let v1 = p1 - prev_positions[i1].xyz;
        let v2 = p2 - prev_positions[i2].xyz;
        let tri_vel = (v0 + v1 + v2) / (3.0 * params.dt);

        let rel_vel = tri_vel - params.wind.xyz;
        if (dot(rel_vel, rel_vel) < 1e-6) {
            continue;
        }

        let c = cross(p1 - p0, p2 - p0);
        let area_x2 = length(c);
        if (area_x2 < 1e-6) {
            continue;
        }
        let area = area_x2 * 0.5;
        let n = c / area_x2;

        let v_dot_n = dot(rel_vel, n);
        let v_normal = n * v_dot_n;
        let v_tangent = rel_vel - v_normal;

        let f_drag = -0.5 * params.drag_coeff * area * length(v_normal) * v_normal;
        let f_lift = -0.5 * params.lift_coeff * area * length(v_tangent) * v_tangent;
        force = force + (f_drag + f_lift) / 3.0;
    }
    forces[i] = vec4<f32>(force, 0.0);
}
`

// integrateShader advances one particle per invocation, consuming the
// force buffer written by the aero pass.
const integrateShader = shaderCommon + `
@group(0) @binding(0) var<storage, read_write> positions: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read_write> prev_positions: array<vec4<f32>>;
@group(0) @binding(2) var<storage, read> inv_mass: array<f32>;
@group(0) @binding(3) var<storage, read> forces: array<vec4<f32>>;
@group(0) @binding(4) var<uniform> params: SimParams;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= params.particle_count) {
        return;
    }
    let w = inv_mass[i];
    if (w < 1e-9) {
        return;
    }

    let pos = positions[i].xyz;
    let prev = prev_positions[i].xyz;

    let velocity = (pos - prev) * params.vel_scale;
    let accel = params.gravity.xyz + forces[i].xyz * w;
    let next = pos + velocity + accel * params.dt * params.dt;

    prev_positions[i] = vec4<f32>(pos, 0.0);
    positions[i] = vec4<f32>(next, 0.0);
}
`

// pairShader projects one pair constraint per invocation within a color
// batch. Used for distance, bending, and (unilateral) tether batches.
const pairShader = shaderCommon + `
struct PairConstraint {
    i1: u32,
    i2: u32,
    rest: f32,
    compliance: f32,
}

@group(0) @binding(0) var<storage, read_write> positions: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read> inv_mass: array<f32>;
@group(0) @binding(2) var<storage, read> constraints: array<PairConstraint>;
@group(0) @binding(3) var<uniform> params: SimParams;
@group(0) @binding(4) var<uniform> batch: BatchParams;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= batch.count) {
        return;
    }
    let k = batch.start + gid.x;
    let c = constraints[k];

    let w1 = inv_mass[c.i1];
    let w2 = inv_mass[c.i2];
    let w_sum = w1 + w2;
    if (w_sum == 0.0) {
        return;
    }

    let p1 = positions[c.i1].xyz;
    let p2 = positions[c.i2].xyz;
    let delta = p1 - p2;
    let len = length(delta);
    if (len < 1e-6) {
        return;
    }
    if (batch.unilateral != 0u && len <= c.rest) {
        return;
    }

    let err = len - c.rest;
    let alpha = c.compliance / (params.dt * params.dt);
    let denom = w_sum + alpha;
    if (denom < 1e-8) {
        return;
    }
    let delta_lambda = -err / denom;
    let correction = (delta / len) * delta_lambda * params.omega;

    if (w1 > 0.0) {
        positions[c.i1] = vec4<f32>(p1 + correction * w1, 0.0);
    }
    if (w2 > 0.0) {
        positions[c.i2] = vec4<f32>(p2 - correction * w2, 0.0);
    }
}
`

// areaShader projects one triangle area constraint per invocation.
const areaShader = shaderCommon + `
struct AreaConstraint {
    i0: u32,
    i1: u32,
    i2: u32,
    rest_area: f32,
}

@group(0) @binding(0) var<storage, read_write> positions: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read> inv_mass: array<f32>;
@group(0) @binding(2) var<storage, read> constraints: array<AreaConstraint>;
@group(0) @binding(3) var<uniform> params: SimParams;
@group(0) @binding(4) var<uniform> batch: BatchParams;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= batch.count) {
        return;
    }
    let k = batch.start + gid.x;
    let c = constraints[k];

    let w0 = inv_mass[c.i0];
    let w1 = inv_mass[c.i1];
    let w2 = inv_mass[c.i2];
    if (w0 + w1 + w2 == 0.0) {
        return;
    }

    let p0 = positions[c.i0].xyz;
    let p1 = positions[c.i1].xyz;
    let p2 = positions[c.i2].xyz;

    let cr = cross(p1 - p0, p2 - p0);
    let area = 0.5 * length(cr);

    let err = area - c.rest_area;
    if (abs(err) < 1e-6 || area < 1e-9) {
        return;
    }

    let n = cr / (2.0 * area);
    let grad0 = 0.5 * cross(n, p2 - p1);
    let grad1 = 0.5 * cross(n, p0 - p2);
    let grad2 = 0.5 * cross(n, p1 - p0);

    let denom = w0 * dot(grad0, grad0) + w1 * dot(grad1, grad1) + w2 * dot(grad2, grad2);
    if (denom < 1e-9) {
        return;
    }

    let alpha = batch.compliance_override / (params.dt * params.dt);
    let delta_lambda = -err / (denom + alpha) * params.omega;

    if (w0 > 0.0) {
        positions[c.i0] = vec4<f32>(p0 + grad0 * delta_lambda * w0, 0.0);
    }
    if (w1 > 0.0) {
        positions[c.i1] = vec4<f32>(p1 + grad1 * delta_lambda * w1, 0.0);
    }
    if (w2 > 0.0) {
        positions[c.i2] = vec4<f32>(p2 + grad2 * delta_lambda * w2, 0.0);
    }
}
`

// collideShader handles one particle per invocation: locate the grid
// cell, scan the 3x3x3 neighborhood, run CCD then discrete closest-point
// tests against every candidate triangle, clamp the approach velocity,
// then project out of the winning contact with friction and an inelastic
// normal response. Corrections are not omega-scaled.
//
// Divergences from the CPU path: detection reruns every solver iteration
// (no persisted contact list), and discrete contacts use the packed
// per-triangle averaged normal rather than the barycentric-interpolated
// vertex normal.
const collideShader = shaderCommon + `
struct GridParams {
    grid_min: vec4<f32>,
    dims: vec4<u32>,      // nx, ny, nz, total
    cell_size: f32,
    tri_count: u32,
    pad0: f32,
    pad1: f32,
}

struct Tri {
    v0: vec4<f32>,
    v1: vec4<f32>,
    v2: vec4<f32>,
    normal: vec4<f32>, // w = margin
}

@group(0) @binding(0) var<storage, read_write> positions: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read_write> prev_positions: array<vec4<f32>>;
@group(0) @binding(2) var<storage, read> inv_mass: array<f32>;
@group(0) @binding(3) var<storage, read> cell_offsets: array<u32>;
@group(0) @binding(4) var<storage, read> cell_counts: array<u32>;
@group(0) @binding(5) var<storage, read> refs: array<u32>;
@group(0) @binding(6) var<storage, read> tris: array<Tri>;
@group(0) @binding(7) var<uniform> params: SimParams;
@group(0) @binding(8) var<uniform> grid: GridParams;

fn closest_point(t: Tri, p: vec3<f32>) -> vec3<f32> {
    let a = t.v0.xyz;
    let b = t.v1.xyz;
    let c = t.v2.xyz;
    let ab = b - a;
    let ac = c - a;
    let ap = p - a;

    let d1 = dot(ab, ap);
    let d2 = dot(ac, ap);
    if (d1 <= 0.0 && d2 <= 0.0) { return a; }

    let bp = p - b;
    let d3 = dot(ab, bp);
    let d4 = dot(ac, bp);
    if (d3 >= 0.0 && d4 <= d3) { return b; }

    let vc = d1 * d4 - d3 * d2;
    if (vc <= 0.0 && d1 >= 0.0 && d3 <= 0.0) {
        let v = d1 / (d1 - d3);
        return a + ab * v;
    }

    let cp = p - c;
    let d5 = dot(ab, cp);
    let d6 = dot(ac, cp);
    if (d6 >= 0.0 && d5 <= d6) { return c; }

    let vb = d5 * d2 - d1 * d6;
    if (vb <= 0.0 && d2 >= 0.0 && d6 <= 0.0) {
        let w = d2 / (d2 - d6);
        return a + ac * w;
    }

    let va = d3 * d6 - d5 * d4;
    if (va <= 0.0 && (d4 - d3) >= 0.0 && (d5 - d6) >= 0.0) {
        let w = (d4 - d3) / ((d4 - d3) + (d5 - d6));
        return b + (c - b) * w;
    }

    let denom = 1.0 / (va + vb + vc);
    let v = vb * denom;
    let w = vc * denom;
    return a + ab * v + ac * w;
}

// Returns vec4(point, t) with t < 0 on miss.
fn intersect_segment(t: Tri, p1: vec3<f32>, p2: vec3<f32>) -> vec4<f32> {
    let eps = 1e-7;
    let edge1 = t.v1.xyz - t.v0.xyz;
    let edge2 = t.v2.xyz - t.v0.xyz;
    let ray = p2 - p1;
    let h = cross(ray, edge2);
    let a = dot(edge1, h);
    if (a > -eps && a < eps) { return vec4<f32>(0.0, 0.0, 0.0, -1.0); }

    let f = 1.0 / a;
    let s = p1 - t.v0.xyz;
    let u = f * dot(s, h);
    if (u < 0.0 || u > 1.0) { return vec4<f32>(0.0, 0.0, 0.0, -1.0); }

    let q = cross(s, edge1);
    let v = f * dot(ray, q);
    if (v < 0.0 || u + v > 1.0) { return vec4<f32>(0.0, 0.0, 0.0, -1.0); }

    let tt = f * dot(edge2, q);
    if (tt <= eps || tt >= 1.0) { return vec4<f32>(0.0, 0.0, 0.0, -1.0); }
    return vec4<f32>(p1 + ray * tt, tt);
}

fn cell_clamp(v: f32, n: u32) -> u32 {
    let c = i32(v);
    return u32(clamp(c, 0, i32(n) - 1));
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= params.particle_count) {
        return;
    }
    if (inv_mass[i] < 1e-9) {
        return;
    }

    var pos = positions[i].xyz;
    let prev = prev_positions[i].xyz;

    let local = (pos - grid.grid_min.xyz) / grid.cell_size;
    let cx = cell_clamp(local.x, grid.dims.x);
    let cy = cell_clamp(local.y, grid.dims.y);
    let cz = cell_clamp(local.z, grid.dims.z);

    var best_point = vec3<f32>(0.0);
    var best_normal = vec3<f32>(0.0);
    var min_metric = 1e30;
    var found = false;
    var continuous = false;

    let discrete_radius = 0.05;

    for (var dz = -1; dz <= 1; dz = dz + 1) {
        for (var dy = -1; dy <= 1; dy = dy + 1) {
            for (var dx = -1; dx <= 1; dx = dx + 1) {
                let x = i32(cx) + dx;
                let y = i32(cy) + dy;
                let z = i32(cz) + dz;
                if (x < 0 || y < 0 || z < 0 ||
                    x >= i32(grid.dims.x) || y >= i32(grid.dims.y) || z >= i32(grid.dims.z)) {
                    continue;
                }
                let cell = u32(x) + u32(y) * grid.dims.x + u32(z) * grid.dims.x * grid.dims.y;
                let off = cell_offsets[cell];
                let cnt = cell_counts[cell];

                for (var k = 0u; k < cnt; k = k + 1u) {
                    let tri = tris[refs[off + k]];

                    let hit = intersect_segment(tri, prev, pos);
                    if (hit.w >= 0.0) {
                        if (!continuous || hit.w < min_metric) {
                            var n = normalize(cross(tri.v1.xyz - tri.v0.xyz, tri.v2.xyz - tri.v0.xyz));
                            if (dot(n, pos - prev) >= 0.0) {
                                n = -n;
                            }
                            best_point = hit.xyz;
                            best_normal = n;
                            min_metric = hit.w;
                            continuous = true;
                            found = true;
                        }
                        continue;
                    }
                    if (continuous) {
                        continue;
                    }

                    let closest = closest_point(tri, pos);
                    let diff = pos - closest;
                    let dist_sq = dot(diff, diff);
                    if (dist_sq >= discrete_radius * discrete_radius || dist_sq >= min_metric) {
                        continue;
                    }
                    // The packed normal is the averaged outward vertex
                    // normal; behind the surface (deep penetration) it
                    // still points the push-out direction.
                    best_point = closest;
                    best_normal = tri.normal.xyz;
                    min_metric = dist_sq;
                    found = true;
                }
            }
        }
    }

    if (!found) {
        return;
    }

    // Airbag clamp: a particle may approach the surface no faster than
    // 90% of the margin per substep, enforced by rewriting prev.
    var prev_used = prev;
    let max_v = params.margin * 0.9 / params.dt;
    let approach = (pos - prev) / params.dt;
    let v_in = dot(approach, best_normal);
    if (v_in < -max_v) {
        let v_tan = approach - best_normal * v_in;
        prev_used = pos - (v_tan - best_normal * max_v) * params.dt;
        prev_positions[i] = vec4<f32>(prev_used, 0.0);
    }

    let projection = dot(pos - best_point, best_normal);
    if (projection >= params.margin) {
        return;
    }

    let penetration = params.margin - projection;
    var k_stiff = params.stiffness;
    if (projection < 0.0) {
        k_stiff = 1.0;
    }
    pos = pos + best_normal * penetration * k_stiff;
    positions[i] = vec4<f32>(pos, 0.0);

    let velocity = pos - prev_used;
    let vn_mag = dot(velocity, best_normal);
    let vn = best_normal * vn_mag;
    let vt = velocity - vn;
    let vt_len = length(vt);

    var friction = 0.0;
    if (vt_len > 1e-9) {
        if (vt_len < penetration * params.static_friction) {
            friction = 1.0;
        } else {
            friction = min(penetration * params.dynamic_friction / vt_len, 1.0);
        }
    }
    let new_vt = vt * (1.0 - friction);

    var new_vn = vn;
    if (vn_mag < 0.0) {
        new_vn = vec3<f32>(0.0);
    }

    prev_positions[i] = vec4<f32>(pos - (new_vn + new_vt), 0.0);
}
`

// interactionShader pins one particle to the drag target. Dispatched as
// a single workgroup; params.x packs the particle index.
const interactionShader = shaderCommon + `
struct InteractionParams {
    target: vec4<f32>,
    index: u32,
    active: u32,
    pad0: u32,
    pad1: u32,
}

@group(0) @binding(0) var<storage, read_write> positions: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read> inv_mass: array<f32>;
@group(0) @binding(2) var<uniform> grab: InteractionParams;

@compute @workgroup_size(1)
fn main() {
    if (grab.active == 0u) {
        return;
    }
    let i = grab.index;
    if (inv_mass[i] < 1e-9) {
        return;
    }
    positions[i] = vec4<f32>(grab.target.xyz, 0.0);
}
`

// normalsShader recomputes one vertex normal per invocation using the
// precomputed vertex-to-triangle adjacency: a race-free fan average of
// area-weighted face normals, so no atomics are required.
const normalsShader = shaderCommon + `
@group(0) @binding(0) var<storage, read> positions: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read> indices: array<u32>;
@group(0) @binding(2) var<storage, read> adj_offsets: array<u32>;
@group(0) @binding(3) var<storage, read> adj_refs: array<u32>;
@group(0) @binding(4) var<storage, read_write> normals: array<vec4<f32>>;
@group(0) @binding(5) var<uniform> params: SimParams;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= params.particle_count) {
        return;
    }

    var n = vec3<f32>(0.0);
    let begin = adj_offsets[i];
    let end = adj_offsets[i + 1u];
    for (var k = begin; k < end; k = k + 1u) {
        let t = adj_refs[k] * 3u;
        let p0 = positions[indices[t]].xyz;
        let p1 = positions[indices[t + 1u]].xyz;
        let p2 = positions[indices[t + 2u]].xyz;
        n = n + cross(p1 - p0, p2 - p0);
    }

    let len_sq = dot(n, n);
    if (len_sq > 1e-12) {
        normals[i] = vec4<f32>(n / sqrt(len_sq), 0.0);
    } else {
        normals[i] = vec4<f32>(0.0, 1.0, 0.0, 0.0);
    }
}
`
